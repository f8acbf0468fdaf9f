package listings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// Repository is the catalog store for listings.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// UpdateColumns writes cols on the listing row.
func (r *Repository) UpdateColumns(ctx context.Context, id uuid.UUID, cols map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Updates(cols)
	return res.RowsAffected, res.Error
}

// Delete removes the listing. Observations, reviews and watchlist entries
// cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Listing{})
	return res.RowsAffected, res.Error
}

// ListPublic returns approved listings matching filter. limit and offset are
// already normalized.
func (r *Repository) ListPublic(ctx context.Context, filter PublicFilter, limit, offset int) ([]models.Listing, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("status = ?", enums.ModerationApproved)
		if filter.CreatedFrom != nil {
			db = db.Where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if filter.CreatedTo != nil {
			db = db.Where("created_at <= ?", filter.CreatedTo.UTC())
		}
		if market := strings.TrimSpace(filter.Market); market != "" {
			db = db.Where("LOWER(market_name) = ?", strings.ToLower(market))
		}
		if q := strings.TrimSpace(filter.Query); q != "" {
			db = db.Where("LOWER(item_name) LIKE ?", "%"+strings.ToLower(q)+"%")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Listing{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Scopes(scope)
	switch filter.SortPrice {
	case SortPriceAsc:
		query = query.Order("price_current ASC")
	case SortPriceDesc:
		query = query.Order("price_current DESC")
	}
	var rows []models.Listing
	err := query.Order("created_at DESC").Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

// ListForOwner returns listings in every status, optionally restricted to a
// vendor and a status.
func (r *Repository) ListForOwner(ctx context.Context, vendorID *uuid.UUID, status *enums.ModerationStatus, limit, offset int) ([]models.Listing, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if vendorID != nil {
			db = db.Where("vendor_id = ?", *vendorID)
		}
		if status != nil {
			db = db.Where("status = ?", *status)
		}
		return db
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Listing{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Listing
	err := r.db.WithContext(ctx).Scopes(scope).Order("created_at DESC").Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

// CountPendingBefore counts listings still pending that were last touched
// before cutoff.
func (r *Repository) CountPendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("status = ? AND updated_at < ?", enums.ModerationPending, cutoff.UTC()).
		Count(&count).Error
	return count, err
}
