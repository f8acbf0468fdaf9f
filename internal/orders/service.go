package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketwatch-backend/pkg/pagination"
)

const maxQuantity = 1000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service records shopper orders and their fulfillment.
type Service interface {
	PlaceOrder(ctx context.Context, caller access.Caller, input PlaceOrderInput) (*OrderDTO, error)
	ListOrders(ctx context.Context, caller access.Caller, page, limit int) ([]OrderDTO, int64, error)
	GetOrder(ctx context.Context, caller access.Caller, orderID uuid.UUID) (*OrderDTO, error)
	ApproveOrder(ctx context.Context, caller access.Caller, orderID uuid.UUID) (*OrderDTO, error)
}

type service struct {
	repo     Repository
	listings ListingReader
	tx       txRunner
	outbox   outboxPublisher
	now      func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, listings ListingReader, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if listings == nil {
		return nil, fmt.Errorf("listing reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		listings: listings,
		tx:       tx,
		outbox:   outbox,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// PlaceOrder snapshots an approved listing into a pending order.
func (s *service) PlaceOrder(ctx context.Context, caller access.Caller, input PlaceOrderInput) (*OrderDTO, error) {
	if err := access.Authorize(caller, access.ActionPlaceOrder, uuid.Nil); err != nil {
		return nil, err
	}
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 || qty > maxQuantity {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", maxQuantity)
	}

	listing, err := s.listings.FindByID(ctx, input.ProductID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product does not exist").
			WithDetails(map[string]any{"product_id": input.ProductID})
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	case listing.Status != enums.ModerationApproved:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
			WithDetails(map[string]any{"product_id": input.ProductID})
	}

	now := s.now()
	lineTotal := listing.PriceCurrent.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	order := &models.Order{
		ID:             uuid.New(),
		PurchaserID:    caller.AccountID,
		PurchaserEmail: caller.Email,
		Status:         enums.OrderStatusPending,
		TotalPrice:     lineTotal,
		OrderDate:      now,
		CreatedAt:      now,
	}
	order.Lines = []models.OrderLine{{
		ID:         uuid.New(),
		OrderID:    order.ID,
		ProductID:  listing.ID,
		Name:       listing.ItemName,
		MarketName: listing.MarketName,
		ImageURL:   listing.ImageURL,
		UnitPrice:  listing.PriceCurrent,
		Quantity:   qty,
		LineTotal:  lineTotal,
	}}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         caller.Actor(),
			OccurredAt:    now,
			Data: payloads.OrderPlacedEvent{
				OrderID:     order.ID,
				PurchaserID: order.PurchaserID,
				ProductIDs:  []uuid.UUID{listing.ID},
				TotalPrice:  order.TotalPrice,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// ListOrders returns the caller's orders. Admins see every order.
func (s *service) ListOrders(ctx context.Context, caller access.Caller, page, limit int) ([]OrderDTO, int64, error) {
	if err := access.Authorize(caller, access.ActionView, caller.AccountID); err != nil {
		return nil, 0, err
	}
	var purchaser *uuid.UUID
	if !caller.IsAdmin() {
		purchaser = &caller.AccountID
	}
	limit, offset := pagination.Window(page, limit)
	rows, total, err := s.repo.ListOrders(ctx, purchaser, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, total, nil
}

func (s *service) GetOrder(ctx context.Context, caller access.Caller, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ActionView, order.PurchaserID); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// ApproveOrder marks a pending order fulfilled. Approving twice is a no-op.
func (s *service) ApproveOrder(ctx context.Context, caller access.Caller, orderID uuid.UUID) (*OrderDTO, error) {
	if err := access.Authorize(caller, access.ActionFulfillOrder, uuid.Nil); err != nil {
		return nil, err
	}
	now := s.now()
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if current.Status == enums.OrderStatusApproved {
			order = current
			return nil
		}
		affected, err := repo.MarkApproved(ctx, orderID, caller.AccountID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve order")
		}
		if order, err = s.load(ctx, repo, orderID); err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderApproved,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Version:       1,
			Actor:         caller.Actor(),
			OccurredAt:    now,
			Data: payloads.OrderApprovedEvent{
				OrderID:    orderID,
				ApprovedBy: caller.AccountID,
				ApprovedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
