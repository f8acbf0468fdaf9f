package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	releases int
	extends  int
	lost     bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Extend(context.Context) (bool, error) {
	f.extends++
	return !f.lost, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(failure, success),
		Lock:     lock,
	})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail: boom")
	assert.Equal(t, 1, success.runs)
	assert.Equal(t, 1, failure.runs)
	assert.Equal(t, 1, lock.releases)
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestNewServiceDefaults(t *testing.T) {
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{}})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, service.interval)

	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	require.Error(t, err)
}

type panicJob struct{}

func (panicJob) Name() string { return "explodes" }

func (panicJob) Run(context.Context) error { panic("kaboom") }

type deadlineJob struct{ hadDeadline bool }

func (d *deadlineJob) Name() string { return "deadline" }

func (d *deadlineJob) Run(ctx context.Context) error {
	_, d.hadDeadline = ctx.Deadline()
	return nil
}

func TestServiceIsolatesPanickingJob(t *testing.T) {
	after := &testJob{name: "after"}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(panicJob{}, after),
		Lock:     lock,
	})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explodes: panic: kaboom")
	assert.Equal(t, 1, after.runs)
	assert.Equal(t, 1, lock.releases)
}

func TestServiceBoundsJobsWithTimeout(t *testing.T) {
	job := &deadlineJob{}
	service, err := NewService(ServiceParams{
		Logger:     logger.Nop(),
		Registry:   NewRegistry(job),
		Lock:       &fakeLock{},
		JobTimeout: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.True(t, job.hadDeadline)
}

func TestServiceStopsCycleWhenCancelled(t *testing.T) {
	job := &testJob{name: "job"}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = service.runCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, job.runs)
	assert.Equal(t, 1, lock.releases)
}

func TestServiceStopsCycleWhenLockLost(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	lock := &fakeLock{lost: true}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(first, second),
		Lock:     lock,
	})
	require.NoError(t, err)

	err = service.runCycle(context.Background())
	require.ErrorIs(t, err, errLockLost)
	assert.Equal(t, 1, first.runs)
	assert.Zero(t, second.runs)
	assert.Equal(t, 1, lock.extends)
}
