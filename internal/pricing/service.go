package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
	"github.com/angelmondragon/marketwatch-backend/pkg/visibility"
)

var tracer = otel.Tracer("github.com/angelmondragon/marketwatch-backend/internal/pricing")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes price series reads, appends and comparisons.
type Service interface {
	AppendPrice(ctx context.Context, caller access.Caller, listingID uuid.UUID, observedOn time.Time, price decimal.Decimal) (*ObservationDTO, error)
	GetPriceHistory(ctx context.Context, caller access.Caller, listingID uuid.UUID) (*HistoryDTO, error)
	GetTrend(ctx context.Context, caller access.Caller, listingID uuid.UUID) (*TrendDTO, error)
	Compare(ctx context.Context, caller access.Caller, listingID uuid.UUID, referenceDate time.Time) (*CompareResult, error)
	CompareBasket(ctx context.Context, caller access.Caller, listingIDs []uuid.UUID, referenceDate time.Time) (*CompareResult, error)
}

type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Outbox  OutboxEmitter
	Cache   *TrendCache
	Metrics *metrics.PricingMetrics
	Config  config.PricingConfig
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  OutboxEmitter
	cache   *TrendCache
	metrics *metrics.PricingMetrics
	cfg     config.PricingConfig
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	cfg := params.Config
	if cfg.BasketMaxItems <= 0 {
		cfg.BasketMaxItems = 50
	}
	if cfg.BasketConcurrency <= 0 {
		cfg.BasketConcurrency = 8
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		cache:   params.Cache,
		metrics: params.Metrics,
		cfg:     cfg,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

// AppendPrice adds one observation to a listing series. Earlier observations
// are never modified.
func (s *service) AppendPrice(ctx context.Context, caller access.Caller, listingID uuid.UUID, observedOn time.Time, price decimal.Decimal) (*ObservationDTO, error) {
	if err := ValidatePrice(price); err != nil {
		return nil, err
	}
	listing, err := s.visibleListing(ctx, caller, listingID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ActionEdit, listing.VendorID); err != nil {
		return nil, err
	}

	var obs *models.PriceObservation
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var appendErr error
		obs, appendErr = Append(ctx, tx, s.outbox, AppendRequest{
			ListingID:  listingID,
			ObservedOn: observedOn,
			Price:      price,
			Now:        s.now(),
			Actor:      caller.Actor(),
		})
		return appendErr
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAppended()
	s.cache.Invalidate(ctx, listingID)
	dto := ObservationFromModel(*obs)
	return &dto, nil
}

func (s *service) GetPriceHistory(ctx context.Context, caller access.Caller, listingID uuid.UUID) (*HistoryDTO, error) {
	if _, err := s.visibleListing(ctx, caller, listingID); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price history")
	}
	out := &HistoryDTO{ListingID: listingID, Observations: make([]ObservationDTO, 0, len(rows))}
	for _, row := range rows {
		out.Observations = append(out.Observations, ObservationFromModel(row))
	}
	return out, nil
}

// GetTrend computes the trend of one listing series, using the cache when
// one is configured.
func (s *service) GetTrend(ctx context.Context, caller access.Caller, listingID uuid.UUID) (*TrendDTO, error) {
	if _, err := s.visibleListing(ctx, caller, listingID); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(ctx, listingID); ok {
		return cached, nil
	}

	rows, err := s.repo.History(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price history")
	}
	dto := summarize(listingID, toObservations(rows))
	s.cache.Put(ctx, dto)
	return dto, nil
}

func summarize(listingID uuid.UUID, history []Observation) *TrendDTO {
	dto := &TrendDTO{
		ListingID:    listingID,
		Trend:        ComputeTrend(history),
		Observations: len(history),
	}
	if len(history) == 0 {
		return dto
	}
	sorted := SortByDate(history)
	first, last := sorted[0], sorted[len(sorted)-1]
	dto.FirstPrice = first.Price
	dto.LastPrice = last.Price
	dto.FirstDate = Day(first.Date).Format(DateLayout)
	dto.LastDate = Day(last.Date).Format(DateLayout)
	return dto
}

func (s *service) Compare(ctx context.Context, caller access.Caller, listingID uuid.UUID, referenceDate time.Time) (*CompareResult, error) {
	if referenceDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference date is required")
	}
	listing, err := s.visibleListing(ctx, caller, listingID)
	if err != nil {
		return nil, err
	}
	result := &CompareResult{ReferenceDate: Day(referenceDate).Format(DateLayout), Items: []ComparisonDTO{}}
	item, ok, err := s.compareListing(ctx, listing, referenceDate)
	if err != nil {
		return nil, err
	}
	if ok {
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// CompareBasket compares several listings against the same date. Listings
// the caller cannot see, and those without a reference observation, are
// left out. Results keep the request order.
func (s *service) CompareBasket(ctx context.Context, caller access.Caller, listingIDs []uuid.UUID, referenceDate time.Time) (*CompareResult, error) {
	if referenceDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference date is required")
	}
	ids := dedupe(listingIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one listing id is required")
	}
	if len(ids) > s.cfg.BasketMaxItems {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "basket accepts at most %d listings", s.cfg.BasketMaxItems)
	}

	ctx, span := tracer.Start(ctx, "pricing.CompareBasket", trace.WithAttributes(attribute.Int("basket.size", len(ids))))
	defer span.End()

	slots := make([]*ComparisonDTO, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BasketConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			listing, err := s.visibleListing(gctx, caller, id)
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			item, ok, err := s.compareListing(gctx, listing, referenceDate)
			if err != nil {
				return err
			}
			if ok {
				slots[i] = &item
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &CompareResult{ReferenceDate: Day(referenceDate).Format(DateLayout), Items: []ComparisonDTO{}}
	for _, slot := range slots {
		if slot != nil {
			result.Items = append(result.Items, *slot)
		}
	}
	span.SetAttributes(attribute.Int("basket.matched", len(result.Items)))
	return result, nil
}

func (s *service) compareListing(ctx context.Context, listing *models.Listing, referenceDate time.Time) (ComparisonDTO, bool, error) {
	rows, err := s.repo.History(ctx, listing.ID)
	if err != nil {
		return ComparisonDTO{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price history")
	}
	ref, ok := ReferenceObservation(toObservations(rows), referenceDate)
	if !ok {
		return ComparisonDTO{}, false, nil
	}
	delta := Diff(ref.Price, listing.PriceCurrent)
	return ComparisonDTO{
		ListingID:      listing.ID,
		ItemName:       listing.ItemName,
		MarketName:     listing.MarketName,
		ReferenceDate:  Day(ref.Date).Format(DateLayout),
		ReferencePrice: ref.Price,
		CurrentPrice:   listing.PriceCurrent,
		Difference:     delta.Difference,
		Change:         delta.Change,
		Direction:      delta.Direction,
	}, true, nil
}

func (s *service) visibleListing(ctx context.Context, caller access.Caller, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.FindListing(ctx, listingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	item := visibility.ModeratedItem{Kind: "listing", OwnerID: listing.VendorID, Status: listing.Status}
	if err := visibility.EnsureVisible(item, caller); err != nil {
		return nil, err
	}
	return listing, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
