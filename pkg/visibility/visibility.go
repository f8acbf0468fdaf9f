package visibility

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
)

// Viewer decides whether a caller may see an item that is not published.
type Viewer interface {
	CanSeeUnpublished(ownerID uuid.UUID) bool
}

// ModeratedItem is anything gated by the moderation workflow.
type ModeratedItem struct {
	Kind    string
	OwnerID uuid.UUID
	Status  enums.ModerationStatus
}

// EnsureVisible hides unpublished items from everybody except the owner and
// admins. Hidden items report NotFound so their existence does not leak.
func EnsureVisible(item ModeratedItem, viewer Viewer) error {
	if item.Status.IsPubliclyVisible() {
		return nil
	}
	if viewer != nil && viewer.CanSeeUnpublished(item.OwnerID) {
		return nil
	}
	return notFound(item.Kind)
}

// EnsurePublished is EnsureVisible for paths that only ever act on published
// items, such as adding to a watchlist or reviewing.
func EnsurePublished(item ModeratedItem) error {
	if item.Status.IsPubliclyVisible() {
		return nil
	}
	return notFound(item.Kind)
}

func notFound(kind string) error {
	if kind == "" {
		kind = "item"
	}
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", kind)
}
