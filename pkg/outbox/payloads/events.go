package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// ModerationEvent is emitted for every applied listing or advertisement
// transition and for submissions.
type ModerationEvent struct {
	ItemID          uuid.UUID              `json:"item_id"`
	VendorID        uuid.UUID              `json:"vendor_id"`
	From            enums.ModerationStatus `json:"from,omitempty"`
	To              enums.ModerationStatus `json:"to"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	Feedback        string                 `json:"feedback,omitempty"`
	Override        bool                   `json:"override,omitempty"`
}

// ItemDeletedEvent records the removal of a listing or advertisement.
type ItemDeletedEvent struct {
	ItemID    uuid.UUID  `json:"item_id"`
	VendorID  uuid.UUID  `json:"vendor_id"`
	DeletedBy uuid.UUID  `json:"deleted_by"`
	DeletedAt time.Time  `json:"deleted_at"`
	Role      enums.Role `json:"role"`
}

// ListingUpdatedEvent lists the edited fields of a listing.
type ListingUpdatedEvent struct {
	ListingID      uuid.UUID              `json:"listing_id"`
	Fields         []string               `json:"fields"`
	Status         enums.ModerationStatus `json:"status"`
	StatusWasReset bool                   `json:"status_was_reset,omitempty"`
}

// AdUpdatedEvent lists the advertisement fields a vendor edited.
type AdUpdatedEvent struct {
	AdID           uuid.UUID              `json:"ad_id"`
	Fields         []string               `json:"fields"`
	Status         enums.ModerationStatus `json:"status"`
	StatusWasReset bool                   `json:"status_was_reset,omitempty"`
}

// PriceAppendedEvent carries one new observation of a listing price series.
type PriceAppendedEvent struct {
	ListingID  uuid.UUID       `json:"listing_id"`
	ObservedOn string          `json:"observed_on"`
	Price      decimal.Decimal `json:"price"`
	Sequence   int64           `json:"sequence"`
}

// OrderPlacedEvent signals a new shopper order.
type OrderPlacedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	PurchaserID uuid.UUID       `json:"purchaser_id"`
	ProductIDs  []uuid.UUID     `json:"product_ids"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// OrderApprovedEvent signals an admin fulfilled an order.
type OrderApprovedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	ApprovedBy uuid.UUID `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
}

// AccountRoleChangedEvent is emitted by admin role changes and merchant approvals.
type AccountRoleChangedEvent struct {
	AccountID uuid.UUID  `json:"account_id"`
	From      enums.Role `json:"from"`
	To        enums.Role `json:"to"`
	ChangedBy uuid.UUID  `json:"changed_by"`
}

// MerchantDecisionEvent records the outcome of a merchant request.
type MerchantDecisionEvent struct {
	RequestID       uuid.UUID              `json:"request_id"`
	AccountID       uuid.UUID              `json:"account_id"`
	Status          enums.ModerationStatus `json:"status"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	Feedback        string                 `json:"feedback,omitempty"`
}
