package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketwatch-backend/api/middleware"
	"github.com/angelmondragon/marketwatch-backend/api/responses"
	"github.com/angelmondragon/marketwatch-backend/api/validators"
	"github.com/angelmondragon/marketwatch-backend/internal/ads"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

// PublicAds returns the approved advertisement carousel.
func PublicAds(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "ads")
			return
		}
		page, limit, err := validators.ParsePaging(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, total, err := svc.ListPublic(r.Context(), page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, items, page, limit, total)
	}
}

func VendorAds(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "ads")
			return
		}
		page, limit, err := validators.ParsePaging(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, total, err := svc.ListMine(r.Context(), middleware.CallerFromContext(r.Context()), page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, items, page, limit, total)
	}
}

type submitAdRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

func VendorSubmitAd(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "ads")
			return
		}
		var payload submitAdRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ad, err := svc.Submit(r.Context(), middleware.CallerFromContext(r.Context()), ads.SubmitInput{
			Title:       payload.Title,
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ad)
	}
}

type updateAdRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

func VendorUpdateAd(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "ads")
			return
		}
		id, err := validators.URLParamUUID(r, "adId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateAdRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ad, err := svc.Update(r.Context(), middleware.CallerFromContext(r.Context()), id, ads.UpdateInput{
			Title:       payload.Title,
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ad)
	}
}

func DeleteAd(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "ads")
			return
		}
		id, err := validators.URLParamUUID(r, "adId")
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

func AdminAdQueue(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "ads")
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

func AdminApproveAd(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "ads")
			return
		}
		id, err := validators.URLParamUUID(r, "adId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		override, err := overrideFlag(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ad, err := svc.Approve(r.Context(), middleware.CallerFromContext(r.Context()), id, override)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ad)
	}
}

func AdminRejectAd(svc ads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "ads")
			return
		}
		id, err := validators.URLParamUUID(r, "adId")
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
		ad, err := svc.Reject(r.Context(), middleware.CallerFromContext(r.Context()), id,
			moderation.Rejection{Reason: payload.Reason, Feedback: payload.Feedback}, override)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ad)
	}
}
