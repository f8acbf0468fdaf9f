package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
)

// Repository reads and appends price observations. It also touches the
// listing row to keep price_current on the latest dated observation.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Insert appends one observation. Observations are never updated.
func (r *Repository) Insert(ctx context.Context, obs *models.PriceObservation) error {
	return r.db.WithContext(ctx).Create(obs).Error
}

// History returns the observations of a listing in insertion order.
func (r *Repository) History(ctx context.Context, listingID uuid.UUID) ([]models.PriceObservation, error) {
	var rows []models.PriceObservation
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// Latest returns the observation with the greatest date. Samples sharing
// that date resolve to the last inserted one.
func (r *Repository) Latest(ctx context.Context, listingID uuid.UUID) (*models.PriceObservation, error) {
	var row models.PriceObservation
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("observed_on DESC").
		Order("id DESC").
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetCurrentPrice moves the listing price to price.
func (r *Repository) SetCurrentPrice(ctx context.Context, listingID uuid.UUID, price decimal.Decimal, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", listingID).
		Updates(map[string]any{"price_current": price, "updated_at": now})
	return res.RowsAffected, res.Error
}

// FindListing loads the listing that owns a series.
func (r *Repository) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}
