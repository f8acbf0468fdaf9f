package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOutboxEventLifecycle(t *testing.T) {
	now := time.Now()
	row := OutboxEvent{AttemptCount: 2}
	assert.True(t, row.Pending())
	assert.False(t, row.FinalAttempt(5))
	assert.True(t, row.FinalAttempt(3))

	published := row
	published.PublishedAt = &now
	assert.False(t, published.Pending())

	terminal := row
	terminal.TerminalAt = &now
	assert.False(t, terminal.Pending())
}
