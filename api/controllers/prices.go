package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/api/middleware"
	"github.com/angelmondragon/marketwatch-backend/api/responses"
	"github.com/angelmondragon/marketwatch-backend/api/validators"
	"github.com/angelmondragon/marketwatch-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

func ListingPriceHistory(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "pricing")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.GetPriceHistory(r.Context(), middleware.CallerFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

type appendPriceRequest struct {
	Date  string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Price decimal.Decimal `json:"price" validate:"money"`
}

// AppendListingPrice records an observation on a listing history. A missing
// date means today.
func AppendListingPrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "pricing")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload appendPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var date time.Time
		if payload.Date != "" {
			date, err = validators.ParseDate(payload.Date)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date"))
				return
			}
		}
		obs, err := svc.AppendPrice(r.Context(), middleware.CallerFromContext(r.Context()), id, date, payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, obs)
	}
}

func ListingTrend(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "pricing")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		trend, err := svc.GetTrend(r.Context(), middleware.CallerFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trend)
	}
}

// ListingComparison compares the current price to the price in force on ?date=.
func ListingComparison(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "pricing")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := validators.ParseQueryDate(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if date == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date is required"))
			return
		}
		result, err := svc.Compare(r.Context(), middleware.CallerFromContext(r.Context()), id, *date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type compareBasketRequest struct {
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	ListingIDs []string `json:"listing_ids" validate:"required,min=1,dive,uuid"`
}

func CompareBasket(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "pricing")
			return
		}
		var payload compareBasketRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := validators.ParseDate(payload.Date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date"))
			return
		}
		ids := make([]uuid.UUID, 0, len(payload.ListingIDs))
		for _, raw := range payload.ListingIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id"))
				return
			}
			ids = append(ids, id)
		}
		result, err := svc.CompareBasket(r.Context(), middleware.CallerFromContext(r.Context()), ids, date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
