package listings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	"github.com/angelmondragon/marketwatch-backend/internal/pricing"
	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/db"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingTrends struct {
	invalidated []uuid.UUID
}

func (r *recordingTrends) Invalidate(_ context.Context, id uuid.UUID) {
	r.invalidated = append(r.invalidated, id)
}

type fixture struct {
	client *db.Client
	svc    Service
	trends *recordingTrends
	vendor access.Caller
	admin  access.Caller
}

func newFixture(t *testing.T, cfg config.ModerationConfig) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	trends := &recordingTrends{}
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(client.DB()),
		Prices:  pricing.NewRepository(client.DB()),
		Tx:      client,
		Outbox:  outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Trends:  trends,
		Metrics: metrics.NewModerationMetrics(reg),
		Pricing: metrics.NewPricingMetrics(reg),
		Config:  cfg,
		Clock:   func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return &fixture{
		client: client,
		svc:    svc,
		trends: trends,
		vendor: access.Caller{AccountID: uuid.New(), Email: "v@example.com", DisplayName: "Vee", Role: enums.RoleVendor},
		admin:  access.Caller{AccountID: uuid.New(), Role: enums.RoleAdmin},
	}
}

func (f *fixture) submit(t *testing.T, price string) *ListingDTO {
	t.Helper()
	dto, err := f.svc.Submit(context.Background(), f.vendor, SubmitInput{
		ItemName:   "Tomatoes",
		MarketName: "Central",
		Price:      decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return dto
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestModerationLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.ModerationConfig{})

	created := f.submit(t, "50")
	assert.Equal(t, enums.ModerationPending, created.Status)
	require.Len(t, created.PriceHistory, 1)
	assert.Equal(t, "50.00", created.PriceHistory[0].Price.StringFixed(2))
	assert.Equal(t, "2024-03-01", created.PriceHistory[0].Date)
	assert.EqualValues(t, 1, f.events(t, enums.EventListingSubmitted))

	rejected, err := f.svc.Reject(ctx, f.admin, created.ID, moderation.Rejection{Reason: "blurry", Feedback: "retake photo"}, false)
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "blurry", *rejected.RejectionReason)

	rows, total, err := f.svc.ListPublic(ctx, PublicFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)

	_, err = f.svc.Approve(ctx, f.admin, created.ID, false)
	assertCode(t, err, pkgerrors.CodeConflict)

	approved, err := f.svc.Approve(ctx, f.admin, created.ID, true)
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationApproved, approved.Status)
	assert.Nil(t, approved.RejectionReason)
	assert.Nil(t, approved.Feedback)

	again, err := f.svc.Approve(ctx, f.admin, created.ID, false)
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationApproved, again.Status)
	assert.EqualValues(t, 1, f.events(t, enums.EventListingApproved))
	assert.EqualValues(t, 1, f.events(t, enums.EventListingRejected))

	rows, total, err = f.svc.ListPublic(ctx, PublicFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, created.ID, rows[0].ID)
}

func TestRejectValidatesBeforeLookup(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	_, err := f.svc.Reject(context.Background(), f.admin, uuid.New(), moderation.Rejection{Reason: "  ", Feedback: "x"}, false)
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Reject(context.Background(), f.admin, uuid.New(), moderation.Rejection{Reason: "r", Feedback: "f"}, false)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestModerationRequiresAdmin(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	created := f.submit(t, "10")
	_, err := f.svc.Approve(context.Background(), f.vendor, created.ID, false)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.vendor, SubmitInput{ItemName: "x", MarketName: "y", Price: decimal.Zero})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Submit(ctx, f.vendor, SubmitInput{MarketName: "y", Price: decimal.NewFromInt(1)})
	assertCode(t, err, pkgerrors.CodeValidation)

	shopper := access.Caller{AccountID: uuid.New(), Role: enums.RoleUser}
	_, err = f.svc.Submit(ctx, shopper, SubmitInput{ItemName: "x", MarketName: "y", Price: decimal.NewFromInt(1)})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestGetHidesUnpublished(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()
	created := f.submit(t, "12")

	_, err := f.svc.Get(ctx, access.Anonymous(), created.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	other := access.Caller{AccountID: uuid.New(), Role: enums.RoleVendor}
	_, err = f.svc.Get(ctx, other, created.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	own, err := f.svc.Get(ctx, f.vendor, created.ID)
	require.NoError(t, err)
	assert.Len(t, own.PriceHistory, 1)

	_, err = f.svc.Get(ctx, f.admin, created.ID)
	require.NoError(t, err)
}

func TestUpdateAppendsPrices(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()
	created := f.submit(t, "10")

	name := "Cherry tomatoes"
	price := decimal.RequireFromString("12.5")
	updated, err := f.svc.Update(ctx, f.vendor, created.ID, UpdateInput{
		ItemName: &name,
		PriceHistory: []PricePoint{
			{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Price: decimal.NewFromInt(11)},
		},
		Price: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.ItemName)
	assert.Equal(t, "12.50", updated.Price.StringFixed(2))
	assert.Equal(t, enums.ModerationPending, updated.Status)
	assert.Equal(t, []uuid.UUID{created.ID}, f.trends.invalidated)
	assert.EqualValues(t, 2, f.events(t, enums.EventPriceAppended))
	assert.EqualValues(t, 1, f.events(t, enums.EventListingUpdated))

	full, err := f.svc.Get(ctx, f.vendor, created.ID)
	require.NoError(t, err)
	require.Len(t, full.PriceHistory, 3)
	assert.Equal(t, "10.00", full.PriceHistory[0].Price.StringFixed(2))
}

func TestUpdateKeepsStatusByDefault(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()
	created := f.submit(t, "10")
	_, err := f.svc.Approve(ctx, f.admin, created.ID, false)
	require.NoError(t, err)

	desc := "ripe"
	updated, err := f.svc.Update(ctx, f.vendor, created.ID, UpdateInput{ItemDescription: &desc})
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationApproved, updated.Status)
}

func TestUpdateResetsStatusWhenConfigured(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{EditResetsStatus: true})
	ctx := context.Background()
	created := f.submit(t, "10")
	_, err := f.svc.Reject(ctx, f.admin, created.ID, moderation.Rejection{Reason: "r", Feedback: "f"}, false)
	require.NoError(t, err)

	desc := "fixed"
	updated, err := f.svc.Update(ctx, f.vendor, created.ID, UpdateInput{ItemDescription: &desc})
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationPending, updated.Status)
	assert.Nil(t, updated.RejectionReason)
}

func TestUpdateOwnership(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()
	created := f.submit(t, "10")
	_, err := f.svc.Approve(ctx, f.admin, created.ID, false)
	require.NoError(t, err)

	desc := "mine now"
	other := access.Caller{AccountID: uuid.New(), Role: enums.RoleVendor}
	_, err = f.svc.Update(ctx, other, created.ID, UpdateInput{ItemDescription: &desc})
	assertCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Update(ctx, f.vendor, created.ID, UpdateInput{})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateOfListingDeletedMidEdit(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()
	created := f.submit(t, "10")

	// the row disappears after the ownership check but before the write
	fired := false
	err := f.client.DB().Callback().Update().Before("gorm:update").Register("test:delete_listing", func(tx *gorm.DB) {
		if fired {
			return
		}
		fired = true
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec("DELETE FROM listings WHERE id = ?", created.ID).Error)
	})
	require.NoError(t, err)

	desc := "gone"
	_, err = f.svc.Update(ctx, f.vendor, created.ID, UpdateInput{ItemDescription: &desc})
	assertCode(t, err, pkgerrors.CodeNotFound)
	assert.True(t, fired)
	assert.EqualValues(t, 0, f.events(t, enums.EventListingUpdated))
}

func TestDelete(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()
	created := f.submit(t, "10")

	other := access.Caller{AccountID: uuid.New(), Role: enums.RoleVendor}
	assertCode(t, f.svc.Delete(ctx, other, created.ID), pkgerrors.CodeNotFound)

	require.NoError(t, f.svc.Delete(ctx, f.admin, created.ID))
	assert.EqualValues(t, 1, f.events(t, enums.EventListingDeleted))
	assertCode(t, f.svc.Delete(ctx, f.admin, created.ID), pkgerrors.CodeNotFound)
}

func TestListMineAndModerationQueue(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()
	a := f.submit(t, "10")
	f.submit(t, "20")
	_, err := f.svc.Approve(ctx, f.admin, a.ID, false)
	require.NoError(t, err)

	mine, total, err := f.svc.ListMine(ctx, f.vendor, nil, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, mine, 2)

	pending := enums.ModerationPending
	queue, total, err := f.svc.ListModeration(ctx, f.admin, &pending, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, queue, 1)

	_, _, err = f.svc.ListModeration(ctx, f.vendor, nil, 1, 10)
	assertCode(t, err, pkgerrors.CodeForbidden)

	_, _, err = f.svc.ListMine(ctx, access.Caller{AccountID: uuid.New(), Role: enums.RoleUser}, nil, 1, 10)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestListPublicFilters(t *testing.T) {
	f := newFixture(t, config.ModerationConfig{})
	ctx := context.Background()
	for _, p := range []string{"30", "10", "20"} {
		dto := f.submit(t, p)
		_, err := f.svc.Approve(ctx, f.admin, dto.ID, false)
		require.NoError(t, err)
	}

	rows, total, err := f.svc.ListPublic(ctx, PublicFilter{SortPrice: SortPriceAsc, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "10.00", rows[0].Price.StringFixed(2))
	assert.Equal(t, "20.00", rows[1].Price.StringFixed(2))

	rows, _, err = f.svc.ListPublic(ctx, PublicFilter{Query: "TOMA", Market: "central"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	from := testNow
	to := testNow.Add(-time.Hour)
	_, _, err = f.svc.ListPublic(ctx, PublicFilter{CreatedFrom: &from, CreatedTo: &to})
	assertCode(t, err, pkgerrors.CodeValidation)
}
