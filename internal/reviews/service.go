package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/pkg/db"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/pagination"
	"github.com/angelmondragon/marketwatch-backend/pkg/visibility"
)

const maxCommentLength = 2000

type ListingReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// Service records shopper reviews and serves the rating aggregate.
type Service interface {
	Submit(ctx context.Context, caller access.Caller, listingID uuid.UUID, input SubmitInput) (*ReviewDTO, error)
	List(ctx context.Context, caller access.Caller, listingID uuid.UUID, page, limit int) ([]ReviewDTO, int64, error)
	AverageRating(ctx context.Context, caller access.Caller, listingID uuid.UUID) (*RatingDTO, error)
}

type service struct {
	repo     *Repository
	listings ListingReader
	now      func() time.Time
}

func NewService(repo *Repository, listings ListingReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if listings == nil {
		return nil, fmt.Errorf("listing reader required")
	}
	return &service{repo: repo, listings: listings, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Submit stores one review per shopper and listing. Only approved listings
// take reviews.
func (s *service) Submit(ctx context.Context, caller access.Caller, listingID uuid.UUID, input SubmitInput) (*ReviewDTO, error) {
	if err := access.Authorize(caller, access.ActionReview, uuid.Nil); err != nil {
		return nil, err
	}
	if input.Rating < MinRating || input.Rating > MaxRating {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "rating must be between %d and %d", MinRating, MaxRating)
	}
	comment := strings.TrimSpace(input.Comment)
	if len(comment) > maxCommentLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "comment exceeds %d characters", maxCommentLength)
	}

	listing, err := s.findListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := visibility.EnsurePublished(moderated(listing)); err != nil {
		return nil, err
	}

	author := strings.TrimSpace(caller.DisplayName)
	if author == "" {
		author = caller.Email
	}
	review := &models.Review{
		ID:         uuid.New(),
		ListingID:  listing.ID,
		AuthorID:   caller.AccountID,
		AuthorName: author,
		Rating:     input.Rating,
		Comment:    comment,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, "reviews_listing_author_key") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "listing already reviewed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}
	dto := FromModel(review)
	return &dto, nil
}

func (s *service) List(ctx context.Context, caller access.Caller, listingID uuid.UUID, page, limit int) ([]ReviewDTO, int64, error) {
	if err := s.ensureVisible(ctx, caller, listingID); err != nil {
		return nil, 0, err
	}
	limit, offset := pagination.Window(page, limit)
	rows, total, err := s.repo.ListForListing(ctx, listingID, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	out := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, total, nil
}

func (s *service) AverageRating(ctx context.Context, caller access.Caller, listingID uuid.UUID) (*RatingDTO, error) {
	if err := s.ensureVisible(ctx, caller, listingID); err != nil {
		return nil, err
	}
	sum, count, err := s.repo.Aggregate(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ratings")
	}
	return &RatingDTO{ListingID: listingID, AverageRating: Average(sum, count), Count: count}, nil
}

func (s *service) ensureVisible(ctx context.Context, caller access.Caller, listingID uuid.UUID) error {
	listing, err := s.findListing(ctx, listingID)
	if err != nil {
		return err
	}
	return visibility.EnsureVisible(moderated(listing), caller)
}

func (s *service) findListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}

func moderated(l *models.Listing) visibility.ModeratedItem {
	return visibility.ModeratedItem{Kind: "listing", OwnerID: l.VendorID, Status: l.Status}
}
