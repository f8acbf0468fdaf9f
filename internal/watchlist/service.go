package watchlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/pagination"
	"github.com/angelmondragon/marketwatch-backend/pkg/visibility"
)

// ListingReader loads the listing being saved.
type ListingReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// Service exposes a shopper's saved listings.
type Service interface {
	Add(ctx context.Context, caller access.Caller, listingID uuid.UUID) error
	Remove(ctx context.Context, caller access.Caller, listingID uuid.UUID) error
	List(ctx context.Context, caller access.Caller, cursor string, limit int) (PageDTO, error)
}

type service struct {
	repo     *Repository
	listings ListingReader
	now      func() time.Time
}

func NewService(repo *Repository, listings ListingReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("watchlist repository required")
	}
	if listings == nil {
		return nil, fmt.Errorf("listing reader required")
	}
	return &service{
		repo:     repo,
		listings: listings,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Add saves an approved listing. Saving it twice is a no-op.
func (s *service) Add(ctx context.Context, caller access.Caller, listingID uuid.UUID) error {
	if err := access.Authorize(caller, access.ActionWatch, uuid.Nil); err != nil {
		return err
	}
	listing, err := s.listings.FindByID(ctx, listingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if err := visibility.EnsurePublished(visibility.ModeratedItem{Kind: "listing", OwnerID: listing.VendorID, Status: listing.Status}); err != nil {
		return err
	}

	_, err = s.repo.AddItem(ctx, &models.WatchlistItem{
		ID:         uuid.New(),
		ShopperID:  caller.AccountID,
		ListingID:  listing.ID,
		ItemName:   listing.ItemName,
		MarketName: listing.MarketName,
		ImageURL:   listing.ImageURL,
		PriceAtAdd: listing.PriceCurrent,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add watchlist item")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, caller access.Caller, listingID uuid.UUID) error {
	if err := access.Authorize(caller, access.ActionWatch, uuid.Nil); err != nil {
		return err
	}
	if err := s.repo.RemoveItem(ctx, caller.AccountID, listingID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove watchlist item")
	}
	return nil
}

func (s *service) List(ctx context.Context, caller access.Caller, cursor string, limit int) (PageDTO, error) {
	if err := access.Authorize(caller, access.ActionWatch, uuid.Nil); err != nil {
		return PageDTO{}, err
	}
	if _, err := pagination.ParseCursor(cursor); err != nil {
		return PageDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.ListItems(ctx, caller.AccountID, cursor, limit)
	if err != nil {
		return PageDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list watchlist")
	}
	return page, nil
}
