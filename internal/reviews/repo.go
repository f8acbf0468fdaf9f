package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *Repository) ListForListing(ctx context.Context, listingID uuid.UUID, limit, offset int) ([]models.Review, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Where("listing_id = ?", listingID)
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Review{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Review
	err := r.db.WithContext(ctx).Scopes(scope).Order("created_at DESC").Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

type aggregateRow struct {
	Total int64 `gorm:"column:total"`
	Count int64 `gorm:"column:count"`
}

// Aggregate returns the rating sum and review count of a listing.
func (r *Repository) Aggregate(ctx context.Context, listingID uuid.UUID) (int64, int64, error) {
	var row aggregateRow
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(SUM(rating), 0) AS total, COUNT(*) AS count").
		Where("listing_id = ?", listingID).
		Scan(&row).Error
	return row.Total, row.Count, err
}
