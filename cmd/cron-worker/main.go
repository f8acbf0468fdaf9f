package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketwatch-backend/internal/ads"
	"github.com/angelmondragon/marketwatch-backend/internal/cron"
	"github.com/angelmondragon/marketwatch-backend/internal/listings"
	"github.com/angelmondragon/marketwatch-backend/internal/merchants"
	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/db"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
	"github.com/angelmondragon/marketwatch-backend/pkg/migrate"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/redis"
	"github.com/angelmondragon/marketwatch-backend/pkg/tracer"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Init(ctx, cfg.Tracing, "marketwatch-"+serviceKind, logg)
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
		err = multierr.Combine(err, redisClient.Close(), dbClient.Close(), shutdownTracer(context.WithoutCancel(ctx)))
	}()

	service, registry, err := buildService(cfg, logg, dbClient, redisClient, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"interval":    cfg.Cron.Interval.String(),
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return service.Run(gctx) })
	g.Go(func() error { return metrics.Serve(gctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// buildService registers the maintenance jobs behind a single cluster-wide lock.
func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*cron.Service, *cron.Registry, error) {
	scope := cfg.App.Env
	if scope == "" {
		scope = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind, scope), 2*cfg.Cron.JobTimeout)
	if err != nil {
		return nil, nil, err
	}

	gormDB := dbClient.DB()
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:                logg,
		Repository:            outbox.NewRepository(gormDB),
		Metrics:               metrics.NewOutboxMetrics(reg),
		RetentionDays:         cfg.Outbox.RetentionDays,
		TerminalRetentionDays: cfg.Outbox.TerminalRetentionDays,
		BatchSize:             cfg.Outbox.PurgeBatchSize,
	})
	if err != nil {
		return nil, nil, err
	}
	staleJob, err := cron.NewStaleModerationJob(cron.StaleModerationJobParams{
		Logger:     logg,
		Metrics:    metrics.NewModerationMetrics(reg),
		StaleAfter: cfg.Moderation.StaleAfter,
		Queues: map[string]cron.PendingCounter{
			string(enums.AggregateListing):         listings.NewRepository(gormDB),
			string(enums.AggregateAdvertisement):   ads.NewRepository(gormDB),
			string(enums.AggregateMerchantRequest): merchants.NewRepository(gormDB),
		},
	})
	if err != nil {
		return nil, nil, err
	}

	registry := cron.NewRegistry(retentionJob, staleJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(reg),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return service, registry, nil
}
