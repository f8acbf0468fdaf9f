package ads

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketwatch-backend/pkg/pagination"
	"github.com/angelmondragon/marketwatch-backend/pkg/visibility"
)

const resourceName = "advertisement"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OutboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages vendor advertisements and their moderation.
type Service interface {
	Submit(ctx context.Context, caller access.Caller, input SubmitInput) (*AdDTO, error)
	Update(ctx context.Context, caller access.Caller, id uuid.UUID, input UpdateInput) (*AdDTO, error)
	Delete(ctx context.Context, caller access.Caller, id uuid.UUID) error
	Approve(ctx context.Context, caller access.Caller, id uuid.UUID, override bool) (*AdDTO, error)
	Reject(ctx context.Context, caller access.Caller, id uuid.UUID, rejection moderation.Rejection, override bool) (*AdDTO, error)
	ListPublic(ctx context.Context, page, limit int) ([]AdDTO, int64, error)
	ListMine(ctx context.Context, caller access.Caller, page, limit int) ([]AdDTO, int64, error)
	ListModeration(ctx context.Context, caller access.Caller, status *enums.ModerationStatus, page, limit int) ([]AdDTO, int64, error)
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  OutboxEmitter
	metrics *metrics.ModerationMetrics
	cfg     config.ModerationConfig
	now     func() time.Time
}

func NewService(repo *Repository, tx txRunner, outbox OutboxEmitter, m *metrics.ModerationMetrics, cfg config.ModerationConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ads repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		metrics: m,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Submit(ctx context.Context, caller access.Caller, input SubmitInput) (*AdDTO, error) {
	if err := access.Authorize(caller, access.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}
	now := s.now()
	ad := &models.Advertisement{
		ID:          uuid.New(),
		VendorID:    caller.AccountID,
		VendorEmail: caller.Email,
		Title:       input.Title,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Status:      enums.ModerationPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, ad); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create advertisement")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdSubmitted,
			AggregateType: enums.AggregateAdvertisement,
			AggregateID:   ad.ID,
			Actor:         caller.Actor(),
			OccurredAt:    now,
			Data: payloads.ModerationEvent{
				ItemID:   ad.ID,
				VendorID: ad.VendorID,
				To:       enums.ModerationPending,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(ad), nil
}

func (s *service) Update(ctx context.Context, caller access.Caller, id uuid.UUID, input UpdateInput) (*AdDTO, error) {
	cols, err := input.columns()
	if err != nil {
		return nil, err
	}
	ad, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ActionEdit, ad.VendorID); err != nil {
		return nil, err
	}

	fields := slices.Sorted(maps.Keys(cols))
	now := s.now()
	reset := s.cfg.EditResetsStatus && ad.Status != enums.ModerationPending
	if reset {
		for k, v := range moderation.Columns(enums.ModerationPending, moderation.Rejection{}, now) {
			cols[k] = v
		}
	}
	cols["updated_at"] = now

	var updated *models.Advertisement
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateColumns(ctx, id, cols)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update advertisement")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "advertisement not found")
		}
		fresh, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload advertisement")
		}
		updated = fresh
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdUpdated,
			AggregateType: enums.AggregateAdvertisement,
			AggregateID:   id,
			Actor:         caller.Actor(),
			OccurredAt:    now,
			Data: payloads.AdUpdatedEvent{
				AdID:           id,
				Fields:         fields,
				Status:         fresh.Status,
				StatusWasReset: reset,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, caller access.Caller, id uuid.UUID) error {
	ad, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := access.Authorize(caller, access.ActionDelete, ad.VendorID); err != nil {
		return err
	}
	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete advertisement")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "advertisement not found")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdDeleted,
			AggregateType: enums.AggregateAdvertisement,
			AggregateID:   id,
			Actor:         caller.Actor(),
			OccurredAt:    now,
			Data: payloads.ItemDeletedEvent{
				ItemID:    id,
				VendorID:  ad.VendorID,
				DeletedBy: caller.AccountID,
				DeletedAt: now,
				Role:      caller.Role,
			},
		})
	})
}

func (s *service) Approve(ctx context.Context, caller access.Caller, id uuid.UUID, override bool) (*AdDTO, error) {
	if err := access.Authorize(caller, access.ActionApprove, uuid.Nil); err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, moderation.Request{
		Model:    &models.Advertisement{},
		ID:       id,
		Target:   enums.ModerationApproved,
		Override: override,
	})
}

func (s *service) Reject(ctx context.Context, caller access.Caller, id uuid.UUID, rejection moderation.Rejection, override bool) (*AdDTO, error) {
	if err := access.Authorize(caller, access.ActionReject, uuid.Nil); err != nil {
		return nil, err
	}
	rejection, err := rejection.Validate()
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, moderation.Request{
		Model:     &models.Advertisement{},
		ID:        id,
		Target:    enums.ModerationRejected,
		Rejection: rejection,
		Override:  override,
	})
}

func (s *service) transition(ctx context.Context, caller access.Caller, req moderation.Request) (*AdDTO, error) {
	req.Now = s.now()
	var (
		result moderation.Result
		ad     *models.Advertisement
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if result, err = moderation.Transition(tx, req); err != nil {
			return err
		}
		if ad, err = s.repo.WithTx(tx).FindByID(ctx, req.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload advertisement")
		}
		if !result.Applied {
			return nil
		}
		eventType := enums.EventAdApproved
		if result.To == enums.ModerationRejected {
			eventType = enums.EventAdRejected
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateAdvertisement,
			AggregateID:   req.ID,
			Actor:         caller.Actor(),
			OccurredAt:    req.Now,
			Data: payloads.ModerationEvent{
				ItemID:          req.ID,
				VendorID:        ad.VendorID,
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
	return FromModel(ad), nil
}

// ListPublic is the approved carousel.
func (s *service) ListPublic(ctx context.Context, page, limit int) ([]AdDTO, int64, error) {
	approved := enums.ModerationApproved
	return s.list(ctx, nil, &approved, page, limit)
}

func (s *service) ListMine(ctx context.Context, caller access.Caller, page, limit int) ([]AdDTO, int64, error) {
	if err := access.Authorize(caller, access.ActionCreate, uuid.Nil); err != nil {
		return nil, 0, err
	}
	if caller.IsAdmin() {
		return s.list(ctx, nil, nil, page, limit)
	}
	return s.list(ctx, &caller.AccountID, nil, page, limit)
}

func (s *service) ListModeration(ctx context.Context, caller access.Caller, status *enums.ModerationStatus, page, limit int) ([]AdDTO, int64, error) {
	if err := access.Authorize(caller, access.ActionApprove, uuid.Nil); err != nil {
		return nil, 0, err
	}
	if status != nil && !status.IsValid() {
		return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *status)
	}
	return s.list(ctx, nil, status, page, limit)
}

func (s *service) list(ctx context.Context, vendorID *uuid.UUID, status *enums.ModerationStatus, page, limit int) ([]AdDTO, int64, error) {
	limit, offset := pagination.Window(page, limit)
	rows, total, err := s.repo.List(ctx, vendorID, status, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list advertisements")
	}
	out := make([]AdDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, total, nil
}

func (s *service) load(ctx context.Context, caller access.Caller, id uuid.UUID) (*models.Advertisement, error) {
	ad, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "advertisement not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load advertisement")
	}
	item := visibility.ModeratedItem{Kind: resourceName, OwnerID: ad.VendorID, Status: ad.Status}
	if err := visibility.EnsureVisible(item, caller); err != nil {
		return nil, err
	}
	return ad, nil
}
