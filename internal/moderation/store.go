package moderation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
)

// Request describes one transition against a moderated table.
type Request struct {
	// Model is a pointer to the gorm model whose table holds the row.
	Model     any
	ID        uuid.UUID
	Target    enums.ModerationStatus
	Rejection Rejection
	Override  bool
	Now       time.Time
}

// Result reports what Transition did.
type Result struct {
	From    enums.ModerationStatus
	To      enums.ModerationStatus
	Applied bool
}

type statusRow struct {
	Status enums.ModerationStatus
}

// Transition applies req inside tx as a compare-and-set on the current
// status. Status and rejection fields are written in a single statement.
func Transition(tx *gorm.DB, req Request) (Result, error) {
	if tx == nil {
		return Result{}, errors.New("transaction required")
	}
	current, err := loadStatus(tx, req.Model, req.ID)
	if err != nil {
		return Result{}, err
	}

	decision, err := Decide(current, req.Target, req.Override)
	if err != nil {
		return Result{}, err
	}
	if decision.Noop {
		return Result{From: current, To: current}, nil
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res := tx.Model(req.Model).
		Where("id = ? AND status = ?", req.ID, decision.From).
		Updates(Columns(decision.To, req.Rejection, now))
	if res.Error != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "apply moderation transition")
	}
	if res.RowsAffected == 1 {
		return Result{From: decision.From, To: decision.To, Applied: true}, nil
	}

	// Lost the race: report the winner's state.
	latest, err := loadStatus(tx, req.Model, req.ID)
	if err != nil {
		return Result{}, err
	}
	if latest == req.Target {
		return Result{From: latest, To: latest}, nil
	}
	return Result{}, ConflictError(latest, req.Target)
}

// Columns is the column set written when an item lands in status. Rejection
// fields are only populated for rejected.
func Columns(status enums.ModerationStatus, rejection Rejection, now time.Time) map[string]any {
	cols := map[string]any{
		"status":           status,
		"rejection_reason": nil,
		"feedback":         nil,
		"updated_at":       now,
	}
	if status == enums.ModerationRejected {
		cols["rejection_reason"] = rejection.Reason
		cols["feedback"] = rejection.Feedback
	}
	return cols
}

func loadStatus(tx *gorm.DB, model any, id uuid.UUID) (enums.ModerationStatus, error) {
	var row statusRow
	err := tx.Model(model).Select("status").Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load moderation status")
	}
	return row.Status, nil
}

// Outcome labels a transition attempt for metrics.
func Outcome(res Result, err error) string {
	switch {
	case err == nil && res.Applied:
		return metrics.OutcomeApplied
	case err == nil:
		return metrics.OutcomeNoop
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeFailed
	}
}
