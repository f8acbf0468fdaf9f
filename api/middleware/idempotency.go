package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketwatch-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/marketwatch-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255
	// inflightTTL bounds how long a crashed request blocks its key
	inflightTTL = time.Minute
)

// idempotentRoute covers one write endpoint. Template segments in braces
// match any single path segment.
type idempotentRoute struct {
	method   string
	template string
	ttl      time.Duration
	required bool
}

var idempotentRoutes = []idempotentRoute{
	{http.MethodPost, "/api/v1/vendor/listings", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/vendor/ads", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/listings/{listingId}/prices", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/merchant-requests", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/v1/admin/orders/{orderId}/approve", defaultIdempotencyTTL, false},
	// orders are receipts; a replayed checkout must never create a second one
	{http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
}

// idempotencyRecord is either an in-flight reservation (Status 0) or the
// captured response of a finished request.
type idempotencyRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

func (r idempotencyRecord) inflight() bool { return r.Status == 0 }

// Idempotency replays the stored response of a previous request with the same
// Idempotency-Key, scoped per caller and path. A key is reserved before the
// handler runs so a concurrent duplicate gets a conflict instead of a second
// write. Only idempotentRoutes are covered; the request path is matched
// directly because the middleware runs before chi resolves the final pattern.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := lookupRoute(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case key == "" && route.required:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case key == "":
				next.ServeHTTP(w, r)
				return
			case len(key) > maxIdempotencyKey:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			digest := sha256.Sum256(body)
			fingerprint := hex.EncodeToString(digest[:])
			caller := CallerFromContext(ctx)
			storeKey := store.IdempotencyKey(caller.AccountID.String()+"|"+r.Method+"|"+r.URL.Path, key)

			reservation, _ := json.Marshal(idempotencyRecord{RequestHash: fingerprint})
			reserved, err := store.SetNX(ctx, storeKey, string(reservation), inflightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayStored(ctx, logg, w, store, storeKey, fingerprint)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			// server failures stay retryable
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, storeKey); err != nil {
					logError(ctx, logg, "idempotency.release_failed", err)
				}
				return
			}

			record := idempotencyRecord{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
				RequestHash: fingerprint,
			}
			if err := persistRecord(ctx, store, storeKey, record, route.ttl); err != nil {
				logError(ctx, logg, "idempotency.persist_failed", err)
			}
		})
	}
}

func replayStored(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder released the key between our SETNX and GET
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}

	switch {
	case record.RequestHash != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.inflight():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// persistRecord swaps the reservation for the final response.
func persistRecord(ctx context.Context, store pkgredis.IdempotencyStore, key string, record idempotencyRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := store.Del(ctx, key); err != nil {
		return err
	}
	_, err = store.SetNX(ctx, key, string(payload), ttl)
	return err
}

func lookupRoute(method, path string) (idempotentRoute, bool) {
	for _, route := range idempotentRoutes {
		if route.method == method && matchTemplate(route.template, path) {
			return route, true
		}
	}
	return idempotentRoute{}, false
}

func matchTemplate(template, path string) bool {
	want := strings.Split(strings.Trim(template, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if segment != got[i] {
			return false
		}
	}
	return true
}
