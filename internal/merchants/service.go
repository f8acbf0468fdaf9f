package merchants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	"github.com/angelmondragon/marketwatch-backend/pkg/db"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketwatch-backend/pkg/pagination"
)

const resourceName = "merchant_request"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the "become a vendor" flow.
type Service interface {
	Submit(ctx context.Context, caller access.Caller, input SubmitInput) (*RequestDTO, error)
	Approve(ctx context.Context, caller access.Caller, id uuid.UUID) (*RequestDTO, error)
	Reject(ctx context.Context, caller access.Caller, id uuid.UUID, rejection moderation.Rejection) (*RequestDTO, error)
	ListPending(ctx context.Context, caller access.Caller, page, limit int) ([]RequestDTO, int64, error)
}

type service struct {
	repo     *Repository
	accounts *access.Repository
	tx       txRunner
	outbox   access.OutboxEmitter
	metrics  *metrics.ModerationMetrics
	now      func() time.Time
}

func NewService(repo *Repository, accounts *access.Repository, tx txRunner, outbox access.OutboxEmitter, m *metrics.ModerationMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("merchant request repository required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		accounts: accounts,
		tx:       tx,
		outbox:   outbox,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit opens a request. An account may hold one pending request at a time.
func (s *service) Submit(ctx context.Context, caller access.Caller, input SubmitInput) (*RequestDTO, error) {
	if err := access.Authorize(caller, access.ActionRequestVendor, uuid.Nil); err != nil {
		return nil, err
	}
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}
	now := s.now()
	req := &models.MerchantRequest{
		ID:              uuid.New(),
		AccountID:       caller.AccountID,
		AccountEmail:    caller.Email,
		ShopName:        input.ShopName,
		ShopDescription: input.ShopDescription,
		Status:          enums.ModerationPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		if db.IsUniqueViolation(err, pendingIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a merchant request is already pending")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create merchant request")
	}
	return FromModel(req), nil
}

// Approve accepts the request and promotes the account to vendor in the same
// transaction.
func (s *service) Approve(ctx context.Context, caller access.Caller, id uuid.UUID) (*RequestDTO, error) {
	if err := access.Authorize(caller, access.ActionDecideMerchant, uuid.Nil); err != nil {
		return nil, err
	}
	return s.decide(ctx, caller, moderation.Request{
		Model:  &models.MerchantRequest{},
		ID:     id,
		Target: enums.ModerationApproved,
	})
}

func (s *service) Reject(ctx context.Context, caller access.Caller, id uuid.UUID, rejection moderation.Rejection) (*RequestDTO, error) {
	if err := access.Authorize(caller, access.ActionDecideMerchant, uuid.Nil); err != nil {
		return nil, err
	}
	rejection, err := rejection.Validate()
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, caller, moderation.Request{
		Model:     &models.MerchantRequest{},
		ID:        id,
		Target:    enums.ModerationRejected,
		Rejection: rejection,
	})
}

func (s *service) decide(ctx context.Context, caller access.Caller, mreq moderation.Request) (*RequestDTO, error) {
	mreq.Now = s.now()
	var (
		result  moderation.Result
		request *models.MerchantRequest
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if result, err = moderation.Transition(tx, mreq); err != nil {
			return err
		}
		if request, err = s.repo.WithTx(tx).FindByID(ctx, mreq.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload merchant request")
		}
		if !result.Applied {
			return nil
		}
		if result.To == enums.ModerationApproved {
			if err := s.promote(ctx, tx, caller, request.AccountID); err != nil {
				return err
			}
		}
		eventType := enums.EventMerchantApproved
		if result.To == enums.ModerationRejected {
			eventType = enums.EventMerchantRejected
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateMerchantRequest,
			AggregateID:   request.ID,
			Actor:         caller.Actor(),
			OccurredAt:    mreq.Now,
			Data: payloads.MerchantDecisionEvent{
				RequestID:       request.ID,
				AccountID:       request.AccountID,
				Status:          result.To,
				RejectionReason: mreq.Rejection.Reason,
				Feedback:        mreq.Rejection.Feedback,
			},
		})
	})
	s.metrics.RecordTransition(resourceName, string(mreq.Target), moderation.Outcome(result, err))
	if err != nil {
		return nil, err
	}
	return FromModel(request), nil
}

// promote upgrades plain users only; admins keep their role.
func (s *service) promote(ctx context.Context, tx *gorm.DB, caller access.Caller, accountID uuid.UUID) error {
	account, err := s.accounts.WithTx(tx).FindByID(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if account.Role != enums.RoleUser {
		return nil
	}
	return access.ApplyRoleChange(ctx, tx, s.outbox, caller, account, enums.RoleVendor)
}

func (s *service) ListPending(ctx context.Context, caller access.Caller, page, limit int) ([]RequestDTO, int64, error) {
	if err := access.Authorize(caller, access.ActionDecideMerchant, uuid.Nil); err != nil {
		return nil, 0, err
	}
	limit, offset := pagination.Window(page, limit)
	rows, total, err := s.repo.ListByStatus(ctx, enums.ModerationPending, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list merchant requests")
	}
	out := make([]RequestDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, total, nil
}
