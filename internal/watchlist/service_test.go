package watchlist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/listings"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
)

type fixture struct {
	db      *gorm.DB
	svc     *service
	shopper access.Caller
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	f := &fixture{
		db:      client.DB(),
		shopper: access.Caller{AccountID: uuid.New(), Role: enums.RoleUser},
		clock:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(NewRepository(client.DB()), listings.NewRepository(client.DB()))
	require.NoError(t, err)
	f.svc = svc.(*service)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func (f *fixture) listing(t *testing.T, status enums.ModerationStatus, price string) *models.Listing {
	t.Helper()
	l := &models.Listing{
		ID:           uuid.New(),
		VendorID:     uuid.New(),
		VendorEmail:  "v@example.com",
		ItemName:     "Onions",
		MarketName:   "North",
		PriceCurrent: decimal.RequireFromString(price),
		Status:       status,
	}
	if status == enums.ModerationRejected {
		reason, feedback := "r", "f"
		l.RejectionReason, l.Feedback = &reason, &feedback
	}
	require.NoError(t, f.db.Create(l).Error)
	return l
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, enums.ModerationApproved, "4.20")

	require.NoError(t, f.svc.Add(ctx, f.shopper, l.ID))
	require.NoError(t, f.svc.Add(ctx, f.shopper, l.ID))

	page, err := f.svc.List(ctx, f.shopper, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "4.20", page.Items[0].PriceAtAdd.StringFixed(2))
	assert.Empty(t, page.NextCursor)
}

func TestAddRequiresApprovedListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pending := f.listing(t, enums.ModerationPending, "1")
	rejected := f.listing(t, enums.ModerationRejected, "1")

	for _, id := range []uuid.UUID{pending.ID, rejected.ID, uuid.New()} {
		err := f.svc.Add(ctx, f.shopper, id)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
	}
}

func TestOnlyShoppersWatch(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, enums.ModerationApproved, "1")
	vendor := access.Caller{AccountID: uuid.New(), Role: enums.RoleVendor}
	err := f.svc.Add(context.Background(), vendor, l.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestRemoveAndCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := []uuid.UUID{}
	for i := 0; i < 3; i++ {
		l := f.listing(t, enums.ModerationApproved, "2")
		require.NoError(t, f.svc.Add(ctx, f.shopper, l.ID))
		ids = append(ids, l.ID)
	}

	first, err := f.svc.List(ctx, f.shopper, "", 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, ids[2], first.Items[0].ListingID)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.List(ctx, f.shopper, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, ids[0], second.Items[0].ListingID)

	require.NoError(t, f.svc.Remove(ctx, f.shopper, ids[0]))
	require.NoError(t, f.svc.Remove(ctx, f.shopper, ids[0]))
	all, err := f.svc.List(ctx, f.shopper, "", 10)
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	_, err = f.svc.List(ctx, f.shopper, "not-a-cursor", 10)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
