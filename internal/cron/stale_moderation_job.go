package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
)

const defaultStaleAfter = 72 * time.Hour

// PendingCounter counts items still pending that were last touched before cutoff.
type PendingCounter interface {
	CountPendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type StaleModerationJobParams struct {
	Logger     *logger.Logger
	Metrics    *metrics.ModerationMetrics
	StaleAfter time.Duration
	// Queues maps a resource label to its counter.
	Queues map[string]PendingCounter
}

// NewStaleModerationJob publishes how many items have waited on a moderator
// longer than StaleAfter.
func NewStaleModerationJob(params StaleModerationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Queues) == 0 {
		return nil, fmt.Errorf("at least one moderation queue required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &staleModerationJob{
		logg:       params.Logger,
		metrics:    params.Metrics,
		staleAfter: staleAfter,
		queues:     params.Queues,
		now:        time.Now,
	}, nil
}

type staleModerationJob struct {
	logg       *logger.Logger
	metrics    *metrics.ModerationMetrics
	staleAfter time.Duration
	queues     map[string]PendingCounter
	now        func() time.Time
}

func (j *staleModerationJob) Name() string { return "stale-moderation" }

func (j *staleModerationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	counts := map[string]any{}
	var errs error
	for resource, counter := range j.queues {
		count, err := counter.CountPendingBefore(ctx, cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", resource, err))
			continue
		}
		j.metrics.SetStalePending(resource, count)
		counts[resource] = count
	}
	counts["cutoff"] = cutoff
	j.logg.Info(j.logg.WithFields(ctx, counts), "stale moderation report")
	return errs
}
