// Package access decides who may do what. The permission table is pure
// data; account provisioning and role lookups live next to it so every
// caller identity is resolved the same way.
package access

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
)

// Action names an operation subject to the permission table.
type Action string

const (
	ActionCreate         Action = "create"
	ActionEdit           Action = "edit"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionDelete         Action = "delete"
	ActionPlaceOrder     Action = "place_order"
	ActionWatch          Action = "watch"
	ActionReview         Action = "review"
	ActionView           Action = "view"
	ActionChangeRole     Action = "change_role"
	ActionRequestVendor  Action = "request_vendor"
	ActionDecideMerchant Action = "decide_merchant"
	ActionFulfillOrder   Action = "fulfill_order"
)

type grant uint8

const (
	deny grant = iota
	allow
	ownOnly
)

var policy = map[enums.Role]map[Action]grant{
	enums.RoleUser: {
		ActionPlaceOrder:    allow,
		ActionWatch:         allow,
		ActionReview:        allow,
		ActionView:          ownOnly,
		ActionRequestVendor: allow,
	},
	enums.RoleVendor: {
		ActionCreate: allow,
		ActionEdit:   ownOnly,
		ActionDelete: ownOnly,
		ActionView:   ownOnly,
	},
	enums.RoleAdmin: {
		ActionCreate:         allow,
		ActionEdit:           allow,
		ActionApprove:        allow,
		ActionReject:         allow,
		ActionDelete:         allow,
		ActionView:           allow,
		ActionChangeRole:     allow,
		ActionDecideMerchant: allow,
		ActionFulfillOrder:   allow,
	},
}

// CanPerform reports whether role may perform action on a resource owned by
// ownerID. Unknown roles and actions are denied. Ownership-scoped grants
// require a non-nil owner equal to callerID.
func CanPerform(role enums.Role, action Action, ownerID, callerID uuid.UUID) bool {
	switch policy[role][action] {
	case allow:
		return true
	case ownOnly:
		return ownerID != uuid.Nil && ownerID == callerID
	default:
		return false
	}
}

// Authorize returns a typed permission error when caller may not perform action.
func Authorize(caller Caller, action Action, ownerID uuid.UUID) error {
	if CanPerform(caller.Role, action, ownerID, caller.AccountID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "permission denied").
		WithDetails(map[string]any{"action": action, "role": caller.Role})
}
