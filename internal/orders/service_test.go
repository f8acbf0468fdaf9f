package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/listings"
	"github.com/angelmondragon/marketwatch-backend/pkg/db"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
)

type fixture struct {
	client *db.Client
	svc    Service
	buyer  access.Caller
	admin  access.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(
		NewRepository(client.DB()),
		listings.NewRepository(client.DB()),
		client,
		outbox.NewService(outbox.NewRepository(client.DB()), nil),
	)
	require.NoError(t, err)
	return &fixture{
		client: client,
		svc:    svc,
		buyer:  access.Caller{AccountID: uuid.New(), Email: "buyer@example.com", Role: enums.RoleUser},
		admin:  access.Caller{AccountID: uuid.New(), Role: enums.RoleAdmin},
	}
}

func (f *fixture) listing(t *testing.T, status enums.ModerationStatus, price string) *models.Listing {
	t.Helper()
	l := &models.Listing{
		ID:           uuid.New(),
		VendorID:     uuid.New(),
		VendorEmail:  "v@example.com",
		ItemName:     "Lentils",
		MarketName:   "West",
		PriceCurrent: decimal.RequireFromString(price),
		Status:       status,
	}
	require.NoError(t, f.client.DB().Create(l).Error)
	return l
}

func (f *fixture) eventCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	require.Error(t, err)
}

func TestPlaceOrderSnapshotsListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, enums.ModerationApproved, "2.50")

	order, err := f.svc.PlaceOrder(ctx, f.buyer, PlaceOrderInput{ProductID: l.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, "7.50", order.TotalPrice.StringFixed(2))
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "Lentils", order.Lines[0].Name)
	assert.EqualValues(t, 1, f.eventCount(t, enums.EventOrderPlaced))

	require.NoError(t, f.client.DB().Model(&models.Listing{}).Where("id = ?", l.ID).Update("price_current", decimal.NewFromInt(9)).Error)
	stored, err := f.svc.GetOrder(ctx, f.buyer, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "2.50", stored.Lines[0].UnitPrice.StringFixed(2))
}

func TestPlaceOrderDefaultsQuantity(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, enums.ModerationApproved, "4")
	order, err := f.svc.PlaceOrder(context.Background(), f.buyer, PlaceOrderInput{ProductID: l.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, order.Lines[0].Quantity)
}

func TestPlaceOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	approved := f.listing(t, enums.ModerationApproved, "1")
	pending := f.listing(t, enums.ModerationPending, "1")

	cases := []PlaceOrderInput{
		{ProductID: approved.ID, Quantity: -1},
		{ProductID: uuid.New()},
		{ProductID: pending.ID},
	}
	for _, in := range cases {
		_, err := f.svc.PlaceOrder(ctx, f.buyer, in)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v got %v", in, err)
	}

	vendor := access.Caller{AccountID: uuid.New(), Role: enums.RoleVendor}
	_, err := f.svc.PlaceOrder(ctx, vendor, PlaceOrderInput{ProductID: approved.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestListAndGetScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, enums.ModerationApproved, "1")
	other := access.Caller{AccountID: uuid.New(), Email: "o@example.com", Role: enums.RoleUser}

	mine, err := f.svc.PlaceOrder(ctx, f.buyer, PlaceOrderInput{ProductID: l.ID})
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, other, PlaceOrderInput{ProductID: l.ID})
	require.NoError(t, err)

	rows, total, err := f.svc.ListOrders(ctx, f.buyer, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, mine.ID, rows[0].ID)

	_, total, err = f.svc.ListOrders(ctx, f.admin, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, err = f.svc.GetOrder(ctx, other, mine.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.GetOrder(ctx, f.admin, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestApproveOrderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, enums.ModerationApproved, "1")
	order, err := f.svc.PlaceOrder(ctx, f.buyer, PlaceOrderInput{ProductID: l.ID})
	require.NoError(t, err)

	_, err = f.svc.ApproveOrder(ctx, f.buyer, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	for i := 0; i < 2; i++ {
		approved, err := f.svc.ApproveOrder(ctx, f.admin, order.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.OrderStatusApproved, approved.Status)
		require.NotNil(t, approved.DecidedAt)
	}
	assert.EqualValues(t, 1, f.eventCount(t, enums.EventOrderApproved))
}
