package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WatchlistItem links a shopper to a saved listing with a display snapshot.
type WatchlistItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopperID  uuid.UUID       `gorm:"column:shopper_id;type:uuid;not null;uniqueIndex:watchlist_items_shopper_listing_key"`
	ListingID  uuid.UUID       `gorm:"column:listing_id;type:uuid;not null;index;uniqueIndex:watchlist_items_shopper_listing_key"`
	ItemName   string          `gorm:"column:item_name;not null"`
	MarketName string          `gorm:"column:market_name;not null"`
	ImageURL   string          `gorm:"column:image_url;not null;default:''"`
	PriceAtAdd decimal.Decimal `gorm:"column:price_at_add;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
