package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// OutboxEvent is a domain event written in the same transaction as the
// change it describes. The relay publishes it later; a row leaves the queue
// once PublishedAt or TerminalAt is set.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	TerminalAt    *time.Time                `gorm:"column:terminal_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// Pending reports whether the relay should still try to publish the row.
func (e OutboxEvent) Pending() bool {
	return e.PublishedAt == nil && e.TerminalAt == nil
}

// FinalAttempt reports whether the next publish attempt is the last one allowed.
func (e OutboxEvent) FinalAttempt(maxAttempts int) bool {
	return e.AttemptCount+1 >= maxAttempts
}
