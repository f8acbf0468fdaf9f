package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketwatch-backend/api/middleware"
	"github.com/angelmondragon/marketwatch-backend/api/responses"
	"github.com/angelmondragon/marketwatch-backend/api/validators"
	"github.com/angelmondragon/marketwatch-backend/internal/merchants"
	"github.com/angelmondragon/marketwatch-backend/internal/moderation"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

type merchantRequestPayload struct {
	ShopName        string `json:"shop_name" validate:"required,max=200"`
	ShopDescription string `json:"shop_description" validate:"max=2000"`
}

// SubmitMerchantRequest files a request to become a vendor.
func SubmitMerchantRequest(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "merchants")
			return
		}
		var payload merchantRequestPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Submit(r.Context(), middleware.CallerFromContext(r.Context()), merchants.SubmitInput{
			ShopName:        payload.ShopName,
			ShopDescription: payload.ShopDescription,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, req)
	}
}

func AdminMerchantRequests(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "merchants")
			return
		}
		page, limit, err := validators.ParsePaging(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, total, err := svc.ListPending(r.Context(), middleware.CallerFromContext(r.Context()), page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, items, page, limit, total)
	}
}

func AdminApproveMerchantRequest(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "merchants")
			return
		}
		id, err := validators.URLParamUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Approve(r.Context(), middleware.CallerFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

func AdminRejectMerchantRequest(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "merchants")
			return
		}
		id, err := validators.URLParamUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload rejectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Reject(r.Context(), middleware.CallerFromContext(r.Context()), id,
			moderation.Rejection{Reason: payload.Reason, Feedback: payload.Feedback})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}
