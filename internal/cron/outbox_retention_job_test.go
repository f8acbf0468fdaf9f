package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
)

type fakeOutboxStore struct {
	publishedCutoff time.Time
	terminalCutoff  time.Time
	publishedBatch  []int64
	deleteErr       error
	publishedCalls  int
	terminalCalls   int
	countCalls      int
}

func (f *fakeOutboxStore) DeletePublishedBefore(_ context.Context, cutoff time.Time, _ int) (int64, error) {
	f.publishedCutoff = cutoff
	f.publishedCalls++
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	if len(f.publishedBatch) == 0 {
		return 0, nil
	}
	n := f.publishedBatch[0]
	f.publishedBatch = f.publishedBatch[1:]
	return n, nil
}

func (f *fakeOutboxStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time, _ int) (int64, error) {
	f.terminalCutoff = cutoff
	f.terminalCalls++
	return 1, nil
}

func (f *fakeOutboxStore) CountPending(context.Context) (int64, error) {
	f.countCalls++
	return 2, nil
}

func newRetentionJob(t *testing.T, store *fakeOutboxStore, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.Nop()
	params.Repository = store
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionCutoffs(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeOutboxStore{}
	job := newRetentionJob(t, store, OutboxRetentionJobParams{})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.AddDate(0, 0, -defaultOutboxRetentionDays), store.publishedCutoff)
	assert.Equal(t, now.AddDate(0, 0, -defaultTerminalRetentionDays), store.terminalCutoff)
	assert.Equal(t, 1, store.countCalls)
}

func TestOutboxRetentionDrainsFullBatches(t *testing.T) {
	store := &fakeOutboxStore{publishedBatch: []int64{5, 5, 3}}
	job := newRetentionJob(t, store, OutboxRetentionJobParams{BatchSize: 5})

	deleted, err := job.purge(context.Background(), store.DeletePublishedBefore, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(13), deleted)
	assert.Equal(t, 3, store.publishedCalls)
}

func TestOutboxRetentionStopsWhenCancelled(t *testing.T) {
	store := &fakeOutboxStore{publishedBatch: []int64{5, 5, 5, 5}}
	job := newRetentionJob(t, store, OutboxRetentionJobParams{BatchSize: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := job.purge(ctx, store.DeletePublishedBefore, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.publishedCalls)
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	store := &fakeOutboxStore{deleteErr: errors.New("boom")}
	job := newRetentionJob(t, store, OutboxRetentionJobParams{RetentionDays: 3})
	require.Error(t, job.Run(context.Background()))
	assert.Zero(t, store.terminalCalls)
	assert.Zero(t, store.countCalls)
}

func TestOutboxRetentionSamplesBacklog(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &fakeOutboxStore{}
	job := newRetentionJob(t, store, OutboxRetentionJobParams{Metrics: metrics.NewOutboxMetrics(reg)})

	require.NoError(t, job.Run(context.Background()))
	families, err := reg.Gather()
	require.NoError(t, err)
	var pending float64
	for _, family := range families {
		if family.GetName() == "marketwatch_outbox_pending" {
			pending = family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(2), pending)
}
