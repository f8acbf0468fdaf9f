package watchlist

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/pagination"
)

// Repository encapsulates watchlist persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddItem inserts a watchlist entry and ignores duplicates. It reports
// whether a row was written.
func (r *Repository) AddItem(ctx context.Context, item *models.WatchlistItem) (bool, error) {
	if item.ShopperID == uuid.Nil || item.ListingID == uuid.Nil {
		return false, gorm.ErrInvalidValue
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shopper_id"}, {Name: "listing_id"}},
			DoNothing: true,
		}).
		Create(item)
	return res.RowsAffected == 1, res.Error
}

// RemoveItem deletes the shopper-listing entry if it exists.
func (r *Repository) RemoveItem(ctx context.Context, shopperID, listingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("shopper_id = ? AND listing_id = ?", shopperID, listingID).
		Delete(&models.WatchlistItem{}).
		Error
}

// ListItems returns one page of a shopper's watchlist, newest first.
func (r *Repository) ListItems(ctx context.Context, shopperID uuid.UUID, cursor string, limit int) (PageDTO, error) {
	decodedCursor, err := pagination.ParseCursor(strings.TrimSpace(cursor))
	if err != nil {
		return PageDTO{}, err
	}

	query := r.db.WithContext(ctx).
		Table("watchlist_items wi").
		Select("wi.id, wi.listing_id, wi.item_name, wi.market_name, wi.image_url, wi.price_at_add, wi.created_at, l.price_current AS current_price").
		Joins("JOIN listings l ON l.id = wi.listing_id").
		Where("wi.shopper_id = ?", shopperID)
	if decodedCursor != nil {
		query = query.Where("(wi.created_at < ?) OR (wi.created_at = ? AND wi.id < ?)", decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var records []itemRecord
	err = query.Order("wi.created_at DESC").Order("wi.id DESC").Limit(pagination.LimitWithBuffer(limit)).Scan(&records).Error
	if err != nil {
		return PageDTO{}, err
	}

	records, next := pagination.Trim(records, limit, func(rec itemRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rec.CreatedAt, ID: rec.ID}
	})
	page := PageDTO{Items: make([]ItemDTO, 0, len(records)), NextCursor: next}
	for _, record := range records {
		page.Items = append(page.Items, record.toDTO())
	}
	return page, nil
}
