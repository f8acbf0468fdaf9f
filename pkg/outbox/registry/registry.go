// Package registry describes every outbox event the relay knows how to publish.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/config"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox/payloads"
)

// EventDescriptor ties an event type to the aggregate that emits it, the
// topic it is published on and the payload schema it carries.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation, with its payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row the relay must give up on: retrying a
// malformed or unknown event never succeeds.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewNonRetryableError wraps err so the relay stops retrying the row.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func schema[T any]() func() any {
	return func() any { return new(T) }
}

// catalog lists the events each aggregate emits with their payload schema.
var catalog = map[enums.OutboxAggregateType]map[enums.OutboxEventType]func() any{
	enums.AggregateListing: {
		enums.EventListingSubmitted: schema[payloads.ModerationEvent](),
		enums.EventListingApproved:  schema[payloads.ModerationEvent](),
		enums.EventListingRejected:  schema[payloads.ModerationEvent](),
		enums.EventListingUpdated:   schema[payloads.ListingUpdatedEvent](),
		enums.EventListingDeleted:   schema[payloads.ItemDeletedEvent](),
		enums.EventPriceAppended:    schema[payloads.PriceAppendedEvent](),
	},
	enums.AggregateAdvertisement: {
		enums.EventAdSubmitted: schema[payloads.ModerationEvent](),
		enums.EventAdUpdated:   schema[payloads.AdUpdatedEvent](),
		enums.EventAdApproved:  schema[payloads.ModerationEvent](),
		enums.EventAdRejected:  schema[payloads.ModerationEvent](),
		enums.EventAdDeleted:   schema[payloads.ItemDeletedEvent](),
	},
	enums.AggregateOrder: {
		enums.EventOrderPlaced:   schema[payloads.OrderPlacedEvent](),
		enums.EventOrderApproved: schema[payloads.OrderApprovedEvent](),
	},
	enums.AggregateAccount: {
		enums.EventAccountRoleChange: schema[payloads.AccountRoleChangedEvent](),
	},
	enums.AggregateMerchantRequest: {
		enums.EventMerchantApproved: schema[payloads.MerchantDecisionEvent](),
		enums.EventMerchantRejected: schema[payloads.MerchantDecisionEvent](),
	},
}

// NewEventRegistry builds the registry. Every event is published on the
// domain topic; consumers filter on the event_type attribute.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, errors.New("domain topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for aggregate, events := range catalog {
		for eventType, factory := range events {
			reg.entries[eventType] = EventDescriptor{
				EventType:      eventType,
				AggregateType:  aggregate,
				Topic:          cfg.DomainTopic,
				PayloadFactory: factory,
			}
		}
	}
	return reg, nil
}

// Descriptor returns the registered descriptor for eventType.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the typed payload.
// Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	resolved, err := r.resolve(event)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	return resolved, nil
}

func (r *EventRegistry) resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, errors.New("unsupported event type")
	case desc.AggregateType != event.AggregateType:
		return nil, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, errors.New("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
