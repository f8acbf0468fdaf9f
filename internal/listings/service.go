package listings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	"github.com/angelmondragon/marketwatch-backend/internal/pricing"
	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketwatch-backend/pkg/pagination"
	"github.com/angelmondragon/marketwatch-backend/pkg/visibility"
)

const resourceName = "listing"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TrendInvalidator drops cached trends after a series changes.
type TrendInvalidator interface {
	Invalidate(ctx context.Context, listingID uuid.UUID)
}

// Service runs the listing lifecycle: submission, vendor edits, moderation
// and catalog reads.
type Service interface {
	Submit(ctx context.Context, caller access.Caller, input SubmitInput) (*ListingDTO, error)
	Update(ctx context.Context, caller access.Caller, id uuid.UUID, input UpdateInput) (*ListingDTO, error)
	Delete(ctx context.Context, caller access.Caller, id uuid.UUID) error
	Approve(ctx context.Context, caller access.Caller, id uuid.UUID, override bool) (*ListingDTO, error)
	Reject(ctx context.Context, caller access.Caller, id uuid.UUID, rejection moderation.Rejection, override bool) (*ListingDTO, error)
	Get(ctx context.Context, caller access.Caller, id uuid.UUID) (*ListingDTO, error)
	ListPublic(ctx context.Context, filter PublicFilter) ([]ListingDTO, int64, error)
	ListMine(ctx context.Context, caller access.Caller, status *enums.ModerationStatus, page, limit int) ([]ListingDTO, int64, error)
	ListModeration(ctx context.Context, caller access.Caller, status *enums.ModerationStatus, page, limit int) ([]ListingDTO, int64, error)
}

type ServiceParams struct {
	Repo    *Repository
	Prices  *pricing.Repository
	Tx      txRunner
	Outbox  pricing.OutboxEmitter
	Trends  TrendInvalidator
	Metrics *metrics.ModerationMetrics
	Pricing *metrics.PricingMetrics
	Config  config.ModerationConfig
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    *Repository
	prices  *pricing.Repository
	tx      txRunner
	outbox  pricing.OutboxEmitter
	trends  TrendInvalidator
	metrics *metrics.ModerationMetrics
	pricing *metrics.PricingMetrics
	cfg     config.ModerationConfig
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Prices == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		prices:  params.Prices,
		tx:      params.Tx,
		outbox:  params.Outbox,
		trends:  params.Trends,
		metrics: params.Metrics,
		pricing: params.Pricing,
		cfg:     params.Config,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

// Submit creates a pending listing together with its seed observation.
func (s *service) Submit(ctx context.Context, caller access.Caller, input SubmitInput) (*ListingDTO, error) {
	if err := access.Authorize(caller, access.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}

	now := s.now()
	listing := &models.Listing{
		ID:                uuid.New(),
		VendorID:          caller.AccountID,
		VendorEmail:       caller.Email,
		VendorName:        caller.DisplayName,
		ItemName:          input.ItemName,
		MarketName:        input.MarketName,
		MarketDescription: input.MarketDescription,
		ItemDescription:   input.ItemDescription,
		ImageURL:          input.ImageURL,
		PriceCurrent:      input.Price.Round(2),
		Status:            enums.ModerationPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var seed *models.PriceObservation
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, listing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
		}
		var appendErr error
		seed, appendErr = pricing.Append(ctx, tx, nil, pricing.AppendRequest{
			ListingID:  listing.ID,
			ObservedOn: input.ObservedOn,
			Price:      input.Price,
			Now:        now,
		})
		if appendErr != nil {
			return appendErr
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingSubmitted,
			AggregateType: enums.AggregateListing,
			AggregateID:   listing.ID,
			Actor:         caller.Actor(),
			OccurredAt:    now,
			Data: payloads.ModerationEvent{
				ItemID:   listing.ID,
				VendorID: listing.VendorID,
				To:       enums.ModerationPending,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.pricing.IncAppended()

	dto := FromModel(listing)
	dto.PriceHistory = []pricing.ObservationDTO{pricing.ObservationFromModel(*seed)}
	return dto, nil
}

// Update edits vendor content. Prices are appended to the series, never
// overwritten. Status only changes when edits are configured to reset it.
func (s *service) Update(ctx context.Context, caller access.Caller, id uuid.UUID, input UpdateInput) (*ListingDTO, error) {
	now := s.now()
	cols, fields, err := input.contentColumns()
	if err != nil {
		return nil, err
	}
	points, err := input.pricePoints(now)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 && len(points) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no changes supplied")
	}

	listing, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ActionEdit, listing.VendorID); err != nil {
		return nil, err
	}

	reset := s.cfg.EditResetsStatus && listing.Status != enums.ModerationPending
	if reset {
		for k, v := range moderation.Columns(enums.ModerationPending, moderation.Rejection{}, now) {
			cols[k] = v
		}
	}
	if len(points) > 0 {
		fields = append(fields, "price")
	}

	var updated *models.Listing
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if len(cols) > 0 {
			cols["updated_at"] = now
			affected, err := repo.UpdateColumns(ctx, id, cols)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing")
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
		}
		for _, p := range points {
			if _, err := pricing.Append(ctx, tx, s.outbox, pricing.AppendRequest{
				ListingID:  id,
				ObservedOn: p.Date,
				Price:      p.Price,
				Now:        now,
				Actor:      caller.Actor(),
			}); err != nil {
				return err
			}
		}
		fresh, err := repo.FindByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload listing")
		}
		updated = fresh
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingUpdated,
			AggregateType: enums.AggregateListing,
			AggregateID:   id,
			Actor:         caller.Actor(),
			OccurredAt:    now,
			Data: payloads.ListingUpdatedEvent{
				ListingID:      id,
				Fields:         fields,
				Status:         fresh.Status,
				StatusWasReset: reset,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if len(points) > 0 {
		for range points {
			s.pricing.IncAppended()
		}
		if s.trends != nil {
			s.trends.Invalidate(ctx, id)
		}
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, caller access.Caller, id uuid.UUID) error {
	listing, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := access.Authorize(caller, access.ActionDelete, listing.VendorID); err != nil {
		return err
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete listing")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingDeleted,
			AggregateType: enums.AggregateListing,
			AggregateID:   id,
			Actor:         caller.Actor(),
			OccurredAt:    now,
			Data: payloads.ItemDeletedEvent{
				ItemID:    id,
				VendorID:  listing.VendorID,
				DeletedBy: caller.AccountID,
				DeletedAt: now,
				Role:      caller.Role,
			},
		})
	})
	if err != nil {
		return err
	}
	if s.trends != nil {
		s.trends.Invalidate(ctx, id)
	}
	return nil
}

// Approve publishes a pending listing. Approving an approved listing is a
// no-op; approving a rejected one needs override.
func (s *service) Approve(ctx context.Context, caller access.Caller, id uuid.UUID, override bool) (*ListingDTO, error) {
	if err := access.Authorize(caller, access.ActionApprove, uuid.Nil); err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, moderation.Request{
		Model:    &models.Listing{},
		ID:       id,
		Target:   enums.ModerationApproved,
		Override: override,
	})
}

// Reject hides a listing with a reason and feedback for its vendor. Both are
// validated before the listing is looked up.
func (s *service) Reject(ctx context.Context, caller access.Caller, id uuid.UUID, rejection moderation.Rejection, override bool) (*ListingDTO, error) {
	if err := access.Authorize(caller, access.ActionReject, uuid.Nil); err != nil {
		return nil, err
	}
	rejection, err := rejection.Validate()
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, moderation.Request{
		Model:     &models.Listing{},
		ID:        id,
		Target:    enums.ModerationRejected,
		Rejection: rejection,
		Override:  override,
	})
}

func (s *service) transition(ctx context.Context, caller access.Caller, req moderation.Request) (*ListingDTO, error) {
	req.Now = s.now()
	var (
		result  moderation.Result
		listing *models.Listing
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = moderation.Transition(tx, req)
		if err != nil {
			return err
		}
		listing, err = s.repo.WithTx(tx).FindByID(ctx, req.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload listing")
		}
		if !result.Applied {
			return nil
		}
		eventType := enums.EventListingApproved
		if result.To == enums.ModerationRejected {
			eventType = enums.EventListingRejected
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateListing,
			AggregateID:   req.ID,
			Actor:         caller.Actor(),
			OccurredAt:    req.Now,
			Data: payloads.ModerationEvent{
				ItemID:          req.ID,
				VendorID:        listing.VendorID,
				From:            result.From,
				To:              result.To,
				RejectionReason: req.Rejection.Reason,
				Feedback:        req.Rejection.Feedback,
				Override:        req.Override && result.From != enums.ModerationPending,
			},
		})
	})
	s.metrics.RecordTransition(resourceName, string(req.Target), moderation.Outcome(result, err))
	if err != nil {
		return nil, err
	}
	if s.logg != nil && result.Applied {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"listing_id": req.ID.String(),
			"from":       result.From,
			"to":         result.To,
		}), "listing.moderated")
	}
	return FromModel(listing), nil
}

// Get returns a listing with its price history. Unpublished listings are only
// visible to their vendor and admins.
func (s *service) Get(ctx context.Context, caller access.Caller, id uuid.UUID) (*ListingDTO, error) {
	listing, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.prices.History(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price history")
	}
	dto := FromModel(listing)
	dto.PriceHistory = make([]pricing.ObservationDTO, 0, len(rows))
	for _, row := range rows {
		dto.PriceHistory = append(dto.PriceHistory, pricing.ObservationFromModel(row))
	}
	return dto, nil
}

func (s *service) ListPublic(ctx context.Context, filter PublicFilter) ([]ListingDTO, int64, error) {
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedTo.Before(*filter.CreatedFrom) {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "created range is inverted")
	}
	limit, offset := pagination.Window(filter.Page, filter.Limit)
	rows, total, err := s.repo.ListPublic(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}
	return toDTOs(rows), total, nil
}

// ListMine returns the vendor's own listings in every status. Admins see all.
func (s *service) ListMine(ctx context.Context, caller access.Caller, status *enums.ModerationStatus, page, limit int) ([]ListingDTO, int64, error) {
	if caller.Role != enums.RoleVendor && !caller.IsAdmin() {
		return nil, 0, pkgerrors.New(pkgerrors.CodeForbidden, "permission denied")
	}
	var vendorID *uuid.UUID
	if !caller.IsAdmin() {
		vendorID = &caller.AccountID
	}
	return s.listForOwner(ctx, vendorID, status, page, limit)
}

// ListModeration is the admin queue, optionally filtered by status.
func (s *service) ListModeration(ctx context.Context, caller access.Caller, status *enums.ModerationStatus, page, limit int) ([]ListingDTO, int64, error) {
	if err := access.Authorize(caller, access.ActionApprove, uuid.Nil); err != nil {
		return nil, 0, err
	}
	return s.listForOwner(ctx, nil, status, page, limit)
}

func (s *service) listForOwner(ctx context.Context, vendorID *uuid.UUID, status *enums.ModerationStatus, page, limit int) ([]ListingDTO, int64, error) {
	if status != nil && !status.IsValid() {
		return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *status)
	}
	limit, offset := pagination.Window(page, limit)
	rows, total, err := s.repo.ListForOwner(ctx, vendorID, status, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}
	return toDTOs(rows), total, nil
}

func (s *service) load(ctx context.Context, caller access.Caller, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	item := visibility.ModeratedItem{Kind: resourceName, OwnerID: listing.VendorID, Status: listing.Status}
	if err := visibility.EnsureVisible(item, caller); err != nil {
		return nil, err
	}
	return listing, nil
}

func toDTOs(rows []models.Listing) []ListingDTO {
	out := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
