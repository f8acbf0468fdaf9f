package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketwatch-backend/api/routes"
	"github.com/angelmondragon/marketwatch-backend/internal/access"
	"github.com/angelmondragon/marketwatch-backend/internal/ads"
	"github.com/angelmondragon/marketwatch-backend/internal/listings"
	"github.com/angelmondragon/marketwatch-backend/internal/merchants"
	"github.com/angelmondragon/marketwatch-backend/internal/orders"
	"github.com/angelmondragon/marketwatch-backend/internal/pricing"
	"github.com/angelmondragon/marketwatch-backend/internal/reviews"
	"github.com/angelmondragon/marketwatch-backend/internal/watchlist"
	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/db"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
	"github.com/angelmondragon/marketwatch-backend/pkg/migrate"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/redis"
	"github.com/angelmondragon/marketwatch-backend/pkg/tracer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Init(ctx, cfg.Tracing, "marketwatch-api", logg)
	if err != nil {
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return multierr.Append(err, dbClient.Close())
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return multierr.Append(err, dbClient.Close())
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Combine(err, redisClient.Close(), dbClient.Close(), shutdownTracer(closeCtx))
	}()

	deps, err := buildDeps(cfg, logg, dbClient, redisClient, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	deps.Gatherer = prometheus.DefaultGatherer

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildDeps assembles the domain services behind the router.
func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (routes.Deps, error) {
	gormDB := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)
	moderationMetrics := metrics.NewModerationMetrics(reg)
	pricingMetrics := metrics.NewPricingMetrics(reg)

	accountsRepo := access.NewRepository(gormDB)
	accessSvc, err := access.NewService(accountsRepo, dbClient, emitter)
	if err != nil {
		return routes.Deps{}, err
	}

	priceRepo := pricing.NewRepository(gormDB)
	trendCache := pricing.NewTrendCache(redisClient, cfg.Pricing.TrendCacheTTL, pricingMetrics, logg)
	pricingSvc, err := pricing.NewService(pricing.ServiceParams{
		Repo:    priceRepo,
		Tx:      dbClient,
		Outbox:  emitter,
		Cache:   trendCache,
		Metrics: pricingMetrics,
		Config:  cfg.Pricing,
		Logger:  logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	listingRepo := listings.NewRepository(gormDB)
	listingSvc, err := listings.NewService(listings.ServiceParams{
		Repo:    listingRepo,
		Prices:  priceRepo,
		Tx:      dbClient,
		Outbox:  emitter,
		Trends:  trendCache,
		Metrics: moderationMetrics,
		Pricing: pricingMetrics,
		Config:  cfg.Moderation,
		Logger:  logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	adSvc, err := ads.NewService(ads.NewRepository(gormDB), dbClient, emitter, moderationMetrics, cfg.Moderation)
	if err != nil {
		return routes.Deps{}, err
	}
	reviewSvc, err := reviews.NewService(reviews.NewRepository(gormDB), listingRepo)
	if err != nil {
		return routes.Deps{}, err
	}
	watchlistSvc, err := watchlist.NewService(watchlist.NewRepository(gormDB), listingRepo)
	if err != nil {
		return routes.Deps{}, err
	}
	orderSvc, err := orders.NewService(orders.NewRepository(gormDB), listingRepo, dbClient, emitter)
	if err != nil {
		return routes.Deps{}, err
	}
	merchantSvc, err := merchants.NewService(merchants.NewRepository(gormDB), accountsRepo, dbClient, emitter, moderationMetrics)
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Store:     redisClient,
		Access:    accessSvc,
		Listings:  listingSvc,
		Pricing:   pricingSvc,
		Ads:       adSvc,
		Reviews:   reviewSvc,
		Watchlist: watchlistSvc,
		Orders:    orderSvc,
		Merchants: merchantSvc,
	}, nil
}
