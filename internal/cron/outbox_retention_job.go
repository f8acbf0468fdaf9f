package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
)

const (
	defaultOutboxRetentionDays   = 14
	defaultTerminalRetentionDays = 90
	defaultPurgeBatchSize        = 1000
)

type outboxStore interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	CountPending(ctx context.Context) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger                *logger.Logger
	Repository            outboxStore
	Metrics               *metrics.OutboxMetrics
	RetentionDays         int
	TerminalRetentionDays int
	BatchSize             int
}

// NewOutboxRetentionJob purges published and terminal outbox rows past their
// retention windows and samples the unpublished backlog.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		metrics:   params.Metrics,
		published: orDefault(params.RetentionDays, defaultOutboxRetentionDays),
		terminal:  orDefault(params.TerminalRetentionDays, defaultTerminalRetentionDays),
		batchSize: orDefault(params.BatchSize, defaultPurgeBatchSize),
		now:       time.Now,
	}, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxStore
	metrics   *metrics.OutboxMetrics
	published int
	terminal  int
	batchSize int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	publishedCutoff := now.AddDate(0, 0, -j.published)
	terminalCutoff := now.AddDate(0, 0, -j.terminal)

	published, err := j.purge(ctx, j.repo.DeletePublishedBefore, publishedCutoff)
	if err != nil {
		return fmt.Errorf("delete published rows: %w", err)
	}
	terminal, err := j.purge(ctx, j.repo.DeleteTerminalBefore, terminalCutoff)
	if err != nil {
		return fmt.Errorf("delete terminal rows: %w", err)
	}
	pending, err := j.repo.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending rows: %w", err)
	}
	j.metrics.SetPending(pending)

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_cutoff": publishedCutoff,
		"terminal_cutoff":  terminalCutoff,
		"published_purged": published,
		"terminal_purged":  terminal,
		"rows_pending":     pending,
	}), "outbox retention cleanup complete")
	return nil
}

type deleteFunc func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

// purge deletes in batches until a short batch signals the window is empty.
func (j *outboxRetentionJob) purge(ctx context.Context, del deleteFunc, cutoff time.Time) (int64, error) {
	var total int64
	for {
		n, err := del(ctx, cutoff, j.batchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(j.batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
