package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/api/middleware"
	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/listings"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	"github.com/angelmondragon/marketwatch-backend/internal/pricing"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

func withParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func asCaller(req *http.Request, role enums.Role) *http.Request {
	caller := access.Caller{AccountID: uuid.New(), Role: role}
	return req.WithContext(middleware.WithCaller(req.Context(), caller))
}

type stubListingService struct {
	listings.Service
	submitted *listings.SubmitInput
	updated   *listings.UpdateInput
	rejection *moderation.Rejection
	override  bool
}

func (s *stubListingService) Submit(_ context.Context, _ access.Caller, in listings.SubmitInput) (*listings.ListingDTO, error) {
	s.submitted = &in
	return &listings.ListingDTO{ID: uuid.New(), Status: enums.ModerationPending}, nil
}

func (s *stubListingService) Update(_ context.Context, _ access.Caller, id uuid.UUID, in listings.UpdateInput) (*listings.ListingDTO, error) {
	s.updated = &in
	return &listings.ListingDTO{ID: id}, nil
}

func (s *stubListingService) Approve(_ context.Context, _ access.Caller, id uuid.UUID, override bool) (*listings.ListingDTO, error) {
	s.override = override
	return &listings.ListingDTO{ID: id, Status: enums.ModerationApproved}, nil
}

func (s *stubListingService) Reject(_ context.Context, _ access.Caller, id uuid.UUID, r moderation.Rejection, override bool) (*listings.ListingDTO, error) {
	s.rejection = &r
	s.override = override
	return &listings.ListingDTO{ID: id, Status: enums.ModerationRejected}, nil
}

func TestVendorSubmitListingParsesBody(t *testing.T) {
	svc := &stubListingService{}
	body := `{"item_name":"Rice","market_name":"Central","price":"50","observed_on":"2024-03-01"}`
	req := asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/vendor/listings", strings.NewReader(body)), enums.RoleVendor)
	rec := httptest.NewRecorder()
	VendorSubmitListing(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.submitted)
	assert.True(t, svc.submitted.Price.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), svc.submitted.ObservedOn)
}

func TestVendorSubmitListingValidation(t *testing.T) {
	cases := map[string]string{
		"missing name":  `{"market_name":"Central","price":"50"}`,
		"bad date":      `{"item_name":"Rice","market_name":"Central","price":"50","observed_on":"03/01/2024"}`,
		"unknown field": `{"item_name":"Rice","market_name":"Central","price":"50","colour":"red"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubListingService{}
			req := asCaller(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), enums.RoleVendor)
			rec := httptest.NewRecorder()
			VendorSubmitListing(svc, logger.Nop()).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, svc.submitted)
		})
	}
}

func TestVendorUpdateListingPriceHistory(t *testing.T) {
	svc := &stubListingService{}
	id := uuid.New()
	body := `{"price_history":[{"date":"2024-01-01","price":"100"},{"date":"2024-02-01","price":"110"}]}`
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
	req = asCaller(withParam(req, "listingId", id.String()), enums.RoleVendor)
	rec := httptest.NewRecorder()
	VendorUpdateListing(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.updated.PriceHistory, 2)
	assert.Equal(t, 2024, svc.updated.PriceHistory[1].Date.Year())
}

func TestAdminApproveListingOverrideFlag(t *testing.T) {
	svc := &stubListingService{}
	id := uuid.New()
	req := withParam(httptest.NewRequest(http.MethodPost, "/?override=true", nil), "listingId", id.String())
	rec := httptest.NewRecorder()
	AdminApproveListing(svc, logger.Nop()).ServeHTTP(rec, asCaller(req, enums.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.override)

	req = withParam(httptest.NewRequest(http.MethodPost, "/?override=maybe", nil), "listingId", id.String())
	rec = httptest.NewRecorder()
	AdminApproveListing(svc, logger.Nop()).ServeHTTP(rec, asCaller(req, enums.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRejectListingRequiresReasonAndFeedback(t *testing.T) {
	svc := &stubListingService{}
	id := uuid.New()

	req := withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"","feedback":"f"}`)), "listingId", id.String())
	rec := httptest.NewRecorder()
	AdminRejectListing(svc, logger.Nop()).ServeHTTP(rec, asCaller(req, enums.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.rejection)

	req = withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"r","feedback":"f"}`)), "listingId", id.String())
	rec = httptest.NewRecorder()
	AdminRejectListing(svc, logger.Nop()).ServeHTTP(rec, asCaller(req, enums.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, moderation.Rejection{Reason: "r", Feedback: "f"}, *svc.rejection)
}

func TestInvalidPathID(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "listingId", "not-a-uuid")
	rec := httptest.NewRecorder()
	GetListing(&stubListingService{}, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNilServiceIsInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	PublicListings(nil, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type stubPricingService struct {
	pricing.Service
	ids      []uuid.UUID
	date     time.Time
	price    decimal.Decimal
	appended bool
}

func (s *stubPricingService) AppendPrice(_ context.Context, _ access.Caller, id uuid.UUID, date time.Time, price decimal.Decimal) (*pricing.ObservationDTO, error) {
	s.ids = []uuid.UUID{id}
	s.date = date
	s.price = price
	s.appended = true
	return &pricing.ObservationDTO{Price: price}, nil
}

func (s *stubPricingService) Compare(_ context.Context, _ access.Caller, id uuid.UUID, date time.Time) (*pricing.CompareResult, error) {
	s.ids = []uuid.UUID{id}
	s.date = date
	return &pricing.CompareResult{ReferenceDate: date.Format("2006-01-02")}, nil
}

func (s *stubPricingService) CompareBasket(_ context.Context, _ access.Caller, ids []uuid.UUID, date time.Time) (*pricing.CompareResult, error) {
	s.ids = ids
	s.date = date
	return &pricing.CompareResult{ReferenceDate: date.Format("2006-01-02")}, nil
}

func TestListingComparisonRequiresDate(t *testing.T) {
	svc := &stubPricingService{}
	id := uuid.New()

	req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "listingId", id.String())
	rec := httptest.NewRecorder()
	ListingComparison(svc, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = withParam(httptest.NewRequest(http.MethodGet, "/?date=2024-01-15", nil), "listingId", id.String())
	rec = httptest.NewRecorder()
	ListingComparison(svc, logger.Nop()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), svc.date)
}

func TestCompareBasketParsesIDs(t *testing.T) {
	svc := &stubPricingService{}
	a, b := uuid.New(), uuid.New()
	body := `{"date":"2024-01-15","listing_ids":["` + a.String() + `","` + b.String() + `"]}`
	rec := httptest.NewRecorder()
	CompareBasket(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []uuid.UUID{a, b}, svc.ids)

	rec = httptest.NewRecorder()
	CompareBasket(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"date":"2024-01-15","listing_ids":["nope"]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppendListingPriceDate(t *testing.T) {
	id := uuid.New()
	post := func(svc *stubPricingService, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req = asCaller(withParam(req, "listingId", id.String()), enums.RoleVendor)
		rec := httptest.NewRecorder()
		AppendListingPrice(svc, logger.Nop()).ServeHTTP(rec, req)
		return rec
	}

	svc := &stubPricingService{}
	rec := post(svc, `{"price":"12.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, svc.appended)
	assert.True(t, svc.date.IsZero(), "service picks today when the date is left out")
	assert.Equal(t, "12.5", svc.price.String())

	svc = &stubPricingService{}
	rec = post(svc, `{"date":"2024-02-01","price":"12.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), svc.date)

	svc = &stubPricingService{}
	rec = post(svc, `{"date":"02/01/2024","price":"12.50"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, svc.appended)
}

type stubAccessService struct {
	access.Service
	filter *access.AccountFilter
}

func (s *stubAccessService) ListAccounts(_ context.Context, _ access.Caller, filter access.AccountFilter, _, _ int) ([]access.AccountDTO, int64, error) {
	s.filter = &filter
	return []access.AccountDTO{}, 0, nil
}

func TestAdminListAccountsSearch(t *testing.T) {
	svc := &stubAccessService{}
	req := asCaller(httptest.NewRequest(http.MethodGet, "/?q=+Maria%20%20Lopez+&role=vendor", nil), enums.RoleAdmin)
	rec := httptest.NewRecorder()
	AdminListAccounts(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.filter)
	assert.Equal(t, "Maria Lopez", svc.filter.Query)
	require.NotNil(t, svc.filter.Role)
	assert.Equal(t, enums.RoleVendor, *svc.filter.Role)

	svc = &stubAccessService{}
	rec = httptest.NewRecorder()
	AdminListAccounts(svc, logger.Nop()).ServeHTTP(rec, asCaller(httptest.NewRequest(http.MethodGet, "/?role=owner", nil), enums.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.filter)
}
