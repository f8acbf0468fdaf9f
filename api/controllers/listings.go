package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/api/middleware"
	"github.com/angelmondragon/marketwatch-backend/api/responses"
	"github.com/angelmondragon/marketwatch-backend/api/validators"
	"github.com/angelmondragon/marketwatch-backend/internal/listings"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

const maxSearchLength = 100

// PublicListings returns approved listings with optional filters.
func PublicListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		filter, err := parsePublicFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, total, err := svc.ListPublic(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, items, filter.Page, filter.Limit, total)
	}
}

func parsePublicFilter(r *http.Request) (listings.PublicFilter, error) {
	page, limit, err := validators.ParsePaging(r)
	if err != nil {
		return listings.PublicFilter{}, err
	}
	sort, err := listings.ParseSortPrice(r.URL.Query().Get("sort_price"))
	if err != nil {
		return listings.PublicFilter{}, err
	}
	from, err := validators.ParseQueryDate(r, "created_from")
	if err != nil {
		return listings.PublicFilter{}, err
	}
	to, err := validators.ParseQueryDate(r, "created_to")
	if err != nil {
		return listings.PublicFilter{}, err
	}
	return listings.PublicFilter{
		Page:        page,
		Limit:       limit,
		SortPrice:   sort,
		CreatedFrom: from,
		CreatedTo:   to,
		Market:      validators.SanitizeString(r.URL.Query().Get("market"), maxSearchLength),
		Query:       validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength),
	}, nil
}

func GetListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), middleware.CallerFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

type submitListingRequest struct {
	ItemName          string          `json:"item_name" validate:"required,max=200"`
	MarketName        string          `json:"market_name" validate:"required,max=200"`
	MarketDescription string          `json:"market_description" validate:"max=2000"`
	ItemDescription   string          `json:"item_description" validate:"max=2000"`
	ImageURL          string          `json:"image_url" validate:"omitempty,url"`
	Price             decimal.Decimal `json:"price" validate:"money"`
	ObservedOn        string          `json:"observed_on" validate:"omitempty,datetime=2006-01-02"`
}

func (p submitListingRequest) toInput() (listings.SubmitInput, error) {
	input := listings.SubmitInput{
		ItemName:          p.ItemName,
		MarketName:        p.MarketName,
		MarketDescription: p.MarketDescription,
		ItemDescription:   p.ItemDescription,
		ImageURL:          p.ImageURL,
		Price:             p.Price,
	}
	if p.ObservedOn != "" {
		date, err := validators.ParseDate(p.ObservedOn)
		if err != nil {
			return listings.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid observed_on")
		}
		input.ObservedOn = date
	}
	return input, nil
}

// VendorSubmitListing creates a pending listing seeded with its first price.
func VendorSubmitListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		var payload submitListingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Submit(r.Context(), middleware.CallerFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

type pricePointRequest struct {
	Date  string          `json:"date" validate:"required,datetime=2006-01-02"`
	Price decimal.Decimal `json:"price" validate:"money"`
}

type updateListingRequest struct {
	ItemName          *string             `json:"item_name" validate:"omitempty,max=200"`
	MarketName        *string             `json:"market_name" validate:"omitempty,max=200"`
	MarketDescription *string             `json:"market_description" validate:"omitempty,max=2000"`
	ItemDescription   *string             `json:"item_description" validate:"omitempty,max=2000"`
	ImageURL          *string             `json:"image_url" validate:"omitempty,url"`
	Price             *decimal.Decimal    `json:"price" validate:"omitempty,money"`
	ObservedOn        *string             `json:"observed_on" validate:"omitempty,datetime=2006-01-02"`
	PriceHistory      []pricePointRequest `json:"price_history" validate:"omitempty,max=100,dive"`
}

func (p updateListingRequest) toInput() (listings.UpdateInput, error) {
	input := listings.UpdateInput{
		ItemName:          p.ItemName,
		MarketName:        p.MarketName,
		MarketDescription: p.MarketDescription,
		ItemDescription:   p.ItemDescription,
		ImageURL:          p.ImageURL,
		Price:             p.Price,
	}
	if p.ObservedOn != nil && strings.TrimSpace(*p.ObservedOn) != "" {
		date, err := validators.ParseDate(*p.ObservedOn)
		if err != nil {
			return listings.UpdateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid observed_on")
		}
		input.ObservedOn = &date
	}
	for _, point := range p.PriceHistory {
		date, err := validators.ParseDate(point.Date)
		if err != nil {
			return listings.UpdateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price_history date")
		}
		input.PriceHistory = append(input.PriceHistory, listings.PricePoint{Date: date, Price: point.Price})
	}
	return input, nil
}

func VendorUpdateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateListingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Update(r.Context(), middleware.CallerFromContext(r.Context()), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// DeleteListing serves both the vendor and the admin delete routes; the
// service decides whether the caller may delete.
func DeleteListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), middleware.CallerFromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func VendorListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		page, limit, err := validators.ParsePaging(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryStatus(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, total, err := svc.ListMine(r.Context(), middleware.CallerFromContext(r.Context()), status, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, items, page, limit, total)
	}
}

// AdminListingQueue lists listings by status for moderators.
func AdminListingQueue(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		page, limit, err := validators.ParsePaging(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryStatus(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, total, err := svc.ListModeration(r.Context(), middleware.CallerFromContext(r.Context()), status, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, items, page, limit, total)
	}
}

func AdminApproveListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		override, err := overrideFlag(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Approve(r.Context(), middleware.CallerFromContext(r.Context()), id, override)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func AdminRejectListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "listings")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		override, err := overrideFlag(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload rejectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rejection := moderation.Rejection{Reason: payload.Reason, Feedback: payload.Feedback}
		listing, err := svc.Reject(r.Context(), middleware.CallerFromContext(r.Context()), id, rejection, override)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

