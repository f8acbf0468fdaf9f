package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// Listing is a vendor-submitted product subject to moderation.
type Listing struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID          uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null;index"`
	VendorEmail       string                 `gorm:"column:vendor_email;not null"`
	VendorName        string                 `gorm:"column:vendor_name;not null;default:''"`
	ItemName          string                 `gorm:"column:item_name;not null"`
	MarketName        string                 `gorm:"column:market_name;not null"`
	MarketDescription string                 `gorm:"column:market_description;not null;default:''"`
	ItemDescription   string                 `gorm:"column:item_description;not null;default:''"`
	ImageURL          string                 `gorm:"column:image_url;not null;default:''"`
	PriceCurrent      decimal.Decimal        `gorm:"column:price_current;type:numeric(12,2);not null"`
	Status            enums.ModerationStatus `gorm:"column:status;type:moderation_status;not null;default:'pending'"`
	RejectionReason   *string                `gorm:"column:rejection_reason"`
	Feedback          *string                `gorm:"column:feedback"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// PriceObservation is one append-only sample of a listing's price series.
// ID is a monotonically increasing sequence and defines insertion order.
type PriceObservation struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ListingID  uuid.UUID       `gorm:"column:listing_id;type:uuid;not null;index"`
	ObservedOn time.Time       `gorm:"column:observed_on;type:date;not null"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
