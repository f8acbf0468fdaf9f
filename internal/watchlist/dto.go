package watchlist

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemDTO is a saved listing. PriceAtAdd is the snapshot taken when the
// shopper saved it; CurrentPrice is read live.
type ItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ListingID    uuid.UUID       `json:"listing_id"`
	ItemName     string          `json:"item_name"`
	MarketName   string          `json:"market_name"`
	ImageURL     string          `json:"image_url"`
	PriceAtAdd   decimal.Decimal `json:"price_at_add"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	AddedAt      time.Time       `json:"added_at"`
}

type PageDTO struct {
	Items      []ItemDTO `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type itemRecord struct {
	ID           uuid.UUID       `gorm:"column:id"`
	ListingID    uuid.UUID       `gorm:"column:listing_id"`
	ItemName     string          `gorm:"column:item_name"`
	MarketName   string          `gorm:"column:market_name"`
	ImageURL     string          `gorm:"column:image_url"`
	PriceAtAdd   decimal.Decimal `gorm:"column:price_at_add"`
	CurrentPrice decimal.Decimal `gorm:"column:current_price"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (r itemRecord) toDTO() ItemDTO {
	return ItemDTO{
		ID:           r.ID,
		ListingID:    r.ListingID,
		ItemName:     r.ItemName,
		MarketName:   r.MarketName,
		ImageURL:     r.ImageURL,
		PriceAtAdd:   r.PriceAtAdd,
		CurrentPrice: r.CurrentPrice,
		AddedAt:      r.CreatedAt,
	}
}
