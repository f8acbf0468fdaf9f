package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/api/responses"
	"github.com/angelmondragon/marketwatch-backend/internal/access"
	pkgAuth "github.com/angelmondragon/marketwatch-backend/pkg/auth"
	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

// RoleResolver returns the authoritative role of an account.
type RoleResolver interface {
	ResolveRole(ctx context.Context, accountID uuid.UUID) (enums.Role, error)
}

// Auth validates a bearer token, resolves the caller role once and seeds the
// request context with the caller. Accounts that were never provisioned get
// an empty role so only the ensure endpoint is usable.
func Auth(cfg config.JWTConfig, resolver RoleResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, resolver, logg, true)
}

// OptionalAuth behaves like Auth when credentials are present and lets
// anonymous requests through otherwise.
func OptionalAuth(cfg config.JWTConfig, resolver RoleResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, resolver, logg, false)
}

func authenticate(cfg config.JWTConfig, resolver RoleResolver, logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			caller := access.Caller{
				AccountID:   claims.AccountID,
				Email:       strings.ToLower(strings.TrimSpace(claims.Email)),
				DisplayName: claims.Name,
			}
			if resolver != nil {
				role, err := resolver.ResolveRole(r.Context(), claims.AccountID)
				switch {
				case err == nil:
					caller.Role = role
				case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
				default:
					responses.WriteError(r.Context(), logg, w, pkgerrors.Passthrough(err, pkgerrors.CodeDependency, "resolve role"))
					return
				}
			}

			ctx := WithCaller(r.Context(), caller)
			if logg != nil {
				ctx = logg.WithCaller(ctx, caller.AccountID.String(), string(caller.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
