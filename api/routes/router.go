package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/marketwatch-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/marketwatch-backend/api/controllers/orders"
	"github.com/angelmondragon/marketwatch-backend/api/middleware"
	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/ads"
	"github.com/angelmondragon/marketwatch-backend/internal/listings"
	"github.com/angelmondragon/marketwatch-backend/internal/merchants"
	"github.com/angelmondragon/marketwatch-backend/internal/orders"
	"github.com/angelmondragon/marketwatch-backend/internal/pricing"
	"github.com/angelmondragon/marketwatch-backend/internal/reviews"
	"github.com/angelmondragon/marketwatch-backend/internal/watchlist"
	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/marketwatch-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer uses.
type RedisStore interface {
	pkgredis.IdempotencyStore
	middleware.RateLimiter
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Store    RedisStore
	Gatherer prometheus.Gatherer

	Access    access.Service
	Listings  listings.Service
	Pricing   pricing.Service
	Ads       ads.Service
	Reviews   reviews.Service
	Watchlist watchlist.Service
	Orders    orders.Service
	Merchants merchants.Service
}

// NewRouter builds the traced HTTP handler.
func NewRouter(d Deps) http.Handler {
	return otelhttp.NewHandler(newMux(d), "marketwatch-api",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			// renamed to the route pattern once chi has matched it
			return "HTTP " + req.Method
		}),
	)
}

func newMux(d Deps) *chi.Mux {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	optionalAuth := middleware.OptionalAuth(cfg.JWT, d.Access, logg)
	requireAuth := middleware.Auth(cfg.JWT, d.Access, logg)
	writeLimit := middleware.RateLimit(d.Store, middleware.WritePolicy, logg)

	r.Route("/api/v1", func(r chi.Router) {
		// public catalog reads; a token only widens what the owner or an admin sees
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/listings", controllers.PublicListings(d.Listings, logg))
			r.Get("/listings/{listingId}", controllers.GetListing(d.Listings, logg))
			r.Get("/listings/{listingId}/prices", controllers.ListingPriceHistory(d.Pricing, logg))
			r.Get("/listings/{listingId}/trend", controllers.ListingTrend(d.Pricing, logg))
			r.Get("/listings/{listingId}/comparison", controllers.ListingComparison(d.Pricing, logg))
			r.Get("/listings/{listingId}/rating", controllers.ListingRating(d.Reviews, logg))
			r.Get("/listings/{listingId}/reviews", controllers.ListingReviews(d.Reviews, logg))
			r.Get("/ads", controllers.PublicAds(d.Ads, logg))
			r.With(middleware.RateLimit(d.Store, middleware.ComparePolicy, logg)).
				Post("/comparisons", controllers.CompareBasket(d.Pricing, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.Idempotency(d.Store, logg))

			r.Post("/accounts/ensure", controllers.AccountsEnsure(d.Access, logg))
			r.Get("/accounts/me", controllers.AccountsMe(d.Access, logg))

			r.With(writeLimit).Post("/listings/{listingId}/reviews", controllers.SubmitReview(d.Reviews, logg))
			r.With(middleware.RequireRole(logg, enums.RoleVendor, enums.RoleAdmin)).
				Post("/listings/{listingId}/prices", controllers.AppendListingPrice(d.Pricing, logg))

			r.Route("/vendor", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleVendor, enums.RoleAdmin))
				r.Get("/listings", controllers.VendorListings(d.Listings, logg))
				r.Post("/listings", controllers.VendorSubmitListing(d.Listings, logg))
				r.Patch("/listings/{listingId}", controllers.VendorUpdateListing(d.Listings, logg))
				r.Delete("/listings/{listingId}", controllers.DeleteListing(d.Listings, logg))
				r.Get("/ads", controllers.VendorAds(d.Ads, logg))
				r.Post("/ads", controllers.VendorSubmitAd(d.Ads, logg))
				r.Patch("/ads/{adId}", controllers.VendorUpdateAd(d.Ads, logg))
				r.Delete("/ads/{adId}", controllers.DeleteAd(d.Ads, logg))
			})

			r.Get("/watchlist", controllers.WatchlistList(d.Watchlist, logg))
			r.With(writeLimit).Post("/watchlist", controllers.WatchlistAdd(d.Watchlist, logg))
			r.With(writeLimit).Delete("/watchlist/{listingId}", controllers.WatchlistRemove(d.Watchlist, logg))

			r.Get("/orders", ordercontrollers.List(d.Orders, logg))
			r.With(writeLimit).Post("/orders", ordercontrollers.Place(d.Orders, logg))
			r.Get("/orders/{orderId}", ordercontrollers.Get(d.Orders, logg))

			r.With(writeLimit).Post("/merchant-requests", controllers.SubmitMerchantRequest(d.Merchants, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

				r.Get("/accounts", controllers.AdminListAccounts(d.Access, logg))
				r.Patch("/accounts/{accountId}/role", controllers.AdminChangeRole(d.Access, logg))

				r.Get("/listings", controllers.AdminListingQueue(d.Listings, logg))
				r.Post("/listings/{listingId}/approve", controllers.AdminApproveListing(d.Listings, logg))
				r.Post("/listings/{listingId}/reject", controllers.AdminRejectListing(d.Listings, logg))
				r.Delete("/listings/{listingId}", controllers.DeleteListing(d.Listings, logg))

				r.Get("/ads", controllers.AdminAdQueue(d.Ads, logg))
				r.Post("/ads/{adId}/approve", controllers.AdminApproveAd(d.Ads, logg))
				r.Post("/ads/{adId}/reject", controllers.AdminRejectAd(d.Ads, logg))
				r.Delete("/ads/{adId}", controllers.DeleteAd(d.Ads, logg))

				r.Post("/orders/{orderId}/approve", ordercontrollers.AdminApprove(d.Orders, logg))

				r.Get("/merchant-requests", controllers.AdminMerchantRequests(d.Merchants, logg))
				r.Post("/merchant-requests/{requestId}/approve", controllers.AdminApproveMerchantRequest(d.Merchants, logg))
				r.Post("/merchant-requests/{requestId}/reject", controllers.AdminRejectMerchantRequest(d.Merchants, logg))
			})
		})
	})

	return r
}
