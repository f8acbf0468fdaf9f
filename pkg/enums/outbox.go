package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateListing         OutboxAggregateType = "listing"
	AggregateAdvertisement   OutboxAggregateType = "advertisement"
	AggregateOrder           OutboxAggregateType = "order"
	AggregateAccount         OutboxAggregateType = "account"
	AggregateMerchantRequest OutboxAggregateType = "merchant_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateListing,
	AggregateAdvertisement,
	AggregateOrder,
	AggregateAccount,
	AggregateMerchantRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventListingSubmitted  OutboxEventType = "listing_submitted"
	EventListingUpdated    OutboxEventType = "listing_updated"
	EventListingApproved   OutboxEventType = "listing_approved"
	EventListingRejected   OutboxEventType = "listing_rejected"
	EventListingDeleted    OutboxEventType = "listing_deleted"
	EventPriceAppended     OutboxEventType = "price_appended"
	EventAdSubmitted       OutboxEventType = "ad_submitted"
	EventAdUpdated         OutboxEventType = "ad_updated"
	EventAdApproved        OutboxEventType = "ad_approved"
	EventAdRejected        OutboxEventType = "ad_rejected"
	EventAdDeleted         OutboxEventType = "ad_deleted"
	EventOrderPlaced       OutboxEventType = "order_placed"
	EventOrderApproved     OutboxEventType = "order_approved"
	EventAccountRoleChange OutboxEventType = "account_role_changed"
	EventMerchantApproved  OutboxEventType = "merchant_request_approved"
	EventMerchantRejected  OutboxEventType = "merchant_request_rejected"
)

var validEventTypes = []OutboxEventType{
	EventListingSubmitted,
	EventListingUpdated,
	EventListingApproved,
	EventListingRejected,
	EventListingDeleted,
	EventPriceAppended,
	EventAdSubmitted,
	EventAdUpdated,
	EventAdApproved,
	EventAdRejected,
	EventAdDeleted,
	EventOrderPlaced,
	EventOrderApproved,
	EventAccountRoleChange,
	EventMerchantApproved,
	EventMerchantRejected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
