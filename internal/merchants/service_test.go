package merchants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	"github.com/angelmondragon/marketwatch-backend/pkg/db"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
)

var admin = access.Caller{AccountID: uuid.New(), Role: enums.RoleAdmin}

type fixture struct {
	client *db.Client
	svc    Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(
		NewRepository(client.DB()),
		access.NewRepository(client.DB()),
		client,
		outbox.NewService(outbox.NewRepository(client.DB()), nil),
		metrics.NewModerationMetrics(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	return &fixture{client: client, svc: svc}
}

func (f *fixture) account(t *testing.T, role enums.Role) access.Caller {
	t.Helper()
	acct := &models.Account{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, f.client.DB().Create(acct).Error)
	return access.Caller{AccountID: acct.ID, Email: acct.Email, Role: role}
}

func (f *fixture) role(t *testing.T, id uuid.UUID) enums.Role {
	t.Helper()
	var acct models.Account
	require.NoError(t, f.client.DB().Where("id = ?", id).Take(&acct).Error)
	return acct.Role
}

func TestApprovePromotesAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.account(t, enums.RoleUser)

	req, err := f.svc.Submit(ctx, user, SubmitInput{ShopName: " Green Grocer ", ShopDescription: "veg"})
	require.NoError(t, err)
	assert.Equal(t, "Green Grocer", req.ShopName)
	assert.Equal(t, enums.ModerationPending, req.Status)

	approved, err := f.svc.Approve(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationApproved, approved.Status)
	assert.Equal(t, enums.RoleVendor, f.role(t, user.AccountID))

	again, err := f.svc.Approve(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationApproved, again.Status)

	var roleEvents int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventAccountRoleChange).Count(&roleEvents).Error)
	assert.EqualValues(t, 1, roleEvents)
}

func TestOnePendingRequestPerAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.account(t, enums.RoleUser)

	first, err := f.svc.Submit(ctx, user, SubmitInput{ShopName: "A"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, user, SubmitInput{ShopName: "B"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = f.svc.Reject(ctx, admin, first.ID, moderation.Rejection{Reason: "incomplete", Feedback: "add details"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleUser, f.role(t, user.AccountID))

	_, err = f.svc.Submit(ctx, user, SubmitInput{ShopName: "B"})
	require.NoError(t, err)
}

func TestSubmitRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vendor := f.account(t, enums.RoleVendor)
	_, err := f.svc.Submit(ctx, vendor, SubmitInput{ShopName: "X"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	user := f.account(t, enums.RoleUser)
	_, err = f.svc.Submit(ctx, user, SubmitInput{ShopName: " "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecisionsRequireAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.account(t, enums.RoleUser)
	req, err := f.svc.Submit(ctx, user, SubmitInput{ShopName: "A"})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, user, req.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Reject(ctx, admin, req.ID, moderation.Rejection{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	pending, total, err := f.svc.ListPending(ctx, admin, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, req.ID, pending[0].ID)
}
