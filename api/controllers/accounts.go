package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketwatch-backend/api/middleware"
	"github.com/angelmondragon/marketwatch-backend/api/responses"
	"github.com/angelmondragon/marketwatch-backend/api/validators"
	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

// AccountsEnsure provisions the caller's account on first sign-in.
func AccountsEnsure(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "access")
			return
		}
		caller := middleware.CallerFromContext(r.Context())
		account, err := svc.EnsureAccount(r.Context(), access.Identity{
			AccountID:   caller.AccountID,
			Email:       caller.Email,
			DisplayName: caller.DisplayName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

func AccountsMe(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "access")
			return
		}
		caller := middleware.CallerFromContext(r.Context())
		account, err := svc.GetAccount(r.Context(), caller, caller.AccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user vendor admin"`
}

// AdminChangeRole sets the role of another account.
func AdminChangeRole(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "access")
			return
		}
		accountID, err := validators.URLParamUUID(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload changeRoleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseRole(strings.TrimSpace(payload.Role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}
		account, err := svc.ChangeRole(r.Context(), middleware.CallerFromContext(r.Context()), accountID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

const maxAccountQueryLen = 100

// AdminListAccounts pages through accounts, filtered by ?role= and searched
// by email or display name with ?q=.
func AdminListAccounts(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(r, logg, w, "access")
			return
		}
		page, limit, err := validators.ParsePaging(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := access.AccountFilter{
			Query: validators.SanitizeString(r.URL.Query().Get("q"), maxAccountQueryLen),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
			parsed, err := enums.ParseRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
			filter.Role = &parsed
		}
		items, total, err := svc.ListAccounts(r.Context(), middleware.CallerFromContext(r.Context()), filter, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, items, page, limit, total)
	}
}
