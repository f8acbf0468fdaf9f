package access

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
)

// Caller is the identity handed to every service call. Role is resolved once
// per request from the accounts table.
type Caller struct {
	AccountID   uuid.UUID
	Email       string
	DisplayName string
	Role        enums.Role
	RequestID   string
}

// Anonymous is the caller of unauthenticated public reads.
func Anonymous() Caller {
	return Caller{}
}

func (c Caller) IsAuthenticated() bool {
	return c.AccountID != uuid.Nil
}

func (c Caller) IsAdmin() bool {
	return c.Role == enums.RoleAdmin
}

// Owns reports whether the caller is the owner of a resource.
func (c Caller) Owns(ownerID uuid.UUID) bool {
	return c.IsAuthenticated() && ownerID == c.AccountID
}

// CanSeeUnpublished reports whether items outside approved are visible to the caller.
func (c Caller) CanSeeUnpublished(ownerID uuid.UUID) bool {
	return c.IsAdmin() || c.Owns(ownerID)
}

// Actor converts the caller into the outbox actor reference.
func (c Caller) Actor() *outbox.ActorRef {
	if !c.IsAuthenticated() {
		return nil
	}
	return &outbox.ActorRef{AccountID: c.AccountID, Role: string(c.Role)}
}
