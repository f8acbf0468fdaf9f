package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/marketwatch-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

// RateLimiter is satisfied by the redis client.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RatePolicy caps requests per caller within a fixed window.
type RatePolicy struct {
	Name   string
	Limit  int64
	Window time.Duration
}

var (
	// WritePolicy guards shopper writes such as reviews, orders and watchlist edits.
	WritePolicy = RatePolicy{Name: "write", Limit: 60, Window: time.Minute}
	// ComparePolicy guards the basket comparison endpoint.
	ComparePolicy = RatePolicy{Name: "compare", Limit: 30, Window: time.Minute}
)

// RateLimit throttles requests per authenticated account, falling back to the
// client IP for anonymous callers. Limiter failures fail open.
func RateLimit(limiter RateLimiter, policy RatePolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || policy.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			scope := policy.Name + ":" + rateSubject(r)
			allowed, count, err := limiter.FixedWindowAllow(r.Context(), scope, policy.Limit, policy.Window)
			if err != nil {
				logError(r.Context(), logg, "rate_limit.check_failed", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests").
					WithDetails(map[string]any{"policy": policy.Name, "count": count}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateSubject(r *http.Request) string {
	if caller := CallerFromContext(r.Context()); caller.IsAuthenticated() {
		return "acct:" + caller.AccountID.String()
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
