package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox/payloads"
)

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func TestEveryEventTypeIsRegistered(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, et := range []enums.OutboxEventType{
		enums.EventListingSubmitted, enums.EventListingUpdated, enums.EventListingApproved,
		enums.EventListingRejected, enums.EventListingDeleted, enums.EventPriceAppended,
		enums.EventAdSubmitted, enums.EventAdApproved, enums.EventAdRejected, enums.EventAdDeleted,
		enums.EventOrderPlaced, enums.EventOrderApproved, enums.EventAccountRoleChange,
		enums.EventMerchantApproved, enums.EventMerchantRejected,
	} {
		desc, ok := reg.Descriptor(et)
		assert.True(t, ok, "missing %s", et)
		assert.Equal(t, "domain-topic", desc.Topic)
	}
}

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	listingID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventListingRejected,
		AggregateType: enums.AggregateListing,
		AggregateID:   listingID,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.ModerationEvent{
			ItemID:          listingID,
			From:            enums.ModerationPending,
			To:              enums.ModerationRejected,
			RejectionReason: "r",
			Feedback:        "f",
		})),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, enums.EventListingRejected, resolved.Descriptor.EventType)
	payload, ok := resolved.Payload.(*payloads.ModerationEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, listingID, payload.ItemID)
	assert.Equal(t, "r", payload.RejectionReason)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEventRegistryResolveFailuresAreNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)
	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "listing_archived",
			AggregateType: enums.AggregateListing,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateListing,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry))
		})
	}
}

func TestCatalogMatchesEnums(t *testing.T) {
	reg := newTestEventRegistry(t)
	for aggregate, events := range catalog {
		assert.True(t, aggregate.IsValid(), "aggregate %s", aggregate)
		for eventType := range events {
			assert.True(t, eventType.IsValid(), "event %s", eventType)
			desc, ok := reg.Descriptor(eventType)
			require.True(t, ok)
			assert.Equal(t, aggregate, desc.AggregateType)
		}
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "domain-topic"})
	require.NoError(t, err)
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return data
}
