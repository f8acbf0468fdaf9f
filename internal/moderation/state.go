// Package moderation holds the approve/reject state machine shared by
// listings, advertisements and merchant requests. It knows nothing about
// who is asking; callers authorize before invoking it.
package moderation

import (
	"strings"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
)

// Decision is the outcome of evaluating a requested transition.
type Decision struct {
	From enums.ModerationStatus
	To   enums.ModerationStatus
	Noop bool
}

// Decide evaluates moving an item from current to target. Approving an
// approved item and rejecting a rejected item are no-ops. Crossing between
// approved and rejected needs override.
func Decide(current, target enums.ModerationStatus, override bool) (Decision, error) {
	if target != enums.ModerationApproved && target != enums.ModerationRejected {
		return Decision{}, pkgerrors.Newf(pkgerrors.CodeValidation, "cannot transition to %q", target)
	}
	if !current.IsValid() {
		return Decision{}, pkgerrors.Newf(pkgerrors.CodeInternal, "unknown moderation status %q", current)
	}

	d := Decision{From: current, To: target}
	switch {
	case current == target:
		d.Noop = true
		return d, nil
	case current == enums.ModerationPending:
		return d, nil
	case override:
		return d, nil
	default:
		return Decision{}, ConflictError(current, target)
	}
}

// ConflictError reports a transition the state machine refuses.
func ConflictError(from, to enums.ModerationStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "cannot move from %s to %s without override", from, to).
		WithDetails(map[string]any{"from": from, "to": to})
}

// Rejection carries the mandatory reason and feedback of a reject call.
type Rejection struct {
	Reason   string
	Feedback string
}

// Validate trims both fields and requires them to be non-blank.
func (r Rejection) Validate() (Rejection, error) {
	out := Rejection{Reason: strings.TrimSpace(r.Reason), Feedback: strings.TrimSpace(r.Feedback)}
	missing := []string{}
	if out.Reason == "" {
		missing = append(missing, "reason")
	}
	if out.Feedback == "" {
		missing = append(missing, "feedback")
	}
	if len(missing) > 0 {
		return Rejection{}, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason and feedback are required").
			WithDetails(map[string]any{"missing": missing})
	}
	return out, nil
}
