package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "outbox-retention"}
	jobB := &stubJob{name: "stale-moderation"}
	require.NoError(t, registry.Register(jobA))
	require.NoError(t, registry.Register(jobB))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "internal slice leaked")
	assert.Equal(t, []string{"outbox-retention", "stale-moderation"}, registry.Names())
}

func TestRegistryRejectsDuplicatesAndBlankNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}, nil)
	assert.Equal(t, []string{"a"}, registry.Names())

	assert.Error(t, registry.Register(&stubJob{name: "a"}))
	assert.Error(t, registry.Register(&stubJob{name: "  "}))
	assert.Error(t, registry.Register(nil))
}
