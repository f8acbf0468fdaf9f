package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox/payloads"
)

// OutboxEmitter queues domain events inside a transaction.
type OutboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AppendRequest is one observation to add to a listing series. A zero
// ObservedOn means today.
type AppendRequest struct {
	ListingID  uuid.UUID
	ObservedOn time.Time
	Price      decimal.Decimal
	Now        time.Time
	Actor      *outbox.ActorRef
}

// ValidatePrice rejects non-positive prices.
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero").
			WithDetails(map[string]any{"price": price.String()})
	}
	return nil
}

// Append inserts an observation and recomputes the listing current price
// inside tx. The current price follows the latest dated observation, so a
// backfilled sample extends the history without moving it. Prior
// observations are never touched. When emitter is set a
// price_appended event is queued in the same transaction.
func Append(ctx context.Context, tx *gorm.DB, emitter OutboxEmitter, req AppendRequest) (*models.PriceObservation, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if err := ValidatePrice(req.Price); err != nil {
		return nil, err
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	observedOn := req.ObservedOn
	if observedOn.IsZero() {
		observedOn = now
	}

	repo := NewRepository(tx)
	obs := &models.PriceObservation{
		ListingID:  req.ListingID,
		ObservedOn: Day(observedOn),
		Price:      req.Price.Round(2),
		CreatedAt:  now,
	}
	if err := repo.Insert(ctx, obs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append price observation")
	}
	latest, err := repo.Latest(ctx, req.ListingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest observation")
	}
	affected, err := repo.SetCurrentPrice(ctx, req.ListingID, latest.Price, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update current price")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}

	if emitter != nil {
		if err := emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPriceAppended,
			AggregateType: enums.AggregateListing,
			AggregateID:   req.ListingID,
			Actor:         req.Actor,
			OccurredAt:    now,
			Data: payloads.PriceAppendedEvent{
				ListingID:  req.ListingID,
				ObservedOn: obs.ObservedOn.Format(DateLayout),
				Price:      obs.Price,
				Sequence:   obs.ID,
			},
		}); err != nil {
			return nil, err
		}
	}
	return obs, nil
}
