package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateRide        OutboxAggregateType = "ride"
	AggregateParticipant OutboxAggregateType = "participant"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRide,
	AggregateParticipant,
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
	EventRideCreated              OutboxEventType = "ride_created"
	EventRideUpdated              OutboxEventType = "ride_updated"
	EventRideDeleted              OutboxEventType = "ride_deleted"
	EventParticipantJoined        OutboxEventType = "participant_joined"
	EventParticipantStatusChanged OutboxEventType = "participant_status_changed"
	EventParticipantLeft          OutboxEventType = "participant_left"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRideCreated,
	EventRideUpdated,
	EventRideDeleted,
	EventParticipantJoined,
	EventParticipantStatusChanged,
	EventParticipantLeft,
}

// String implements fmt.Stringer.
func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason classifies why an outbox row was moved to the DLQ.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

// IsRideEvent reports whether the event targets the rides table.
func (e OutboxEventType) IsRideEvent() bool {
	switch e {
	case EventRideCreated, EventRideUpdated, EventRideDeleted:
		return true
	}
	return false
}

// IsParticipantEvent reports whether the event targets the ride_participants table.
func (e OutboxEventType) IsParticipantEvent() bool {
	switch e {
	case EventParticipantJoined, EventParticipantStatusChanged, EventParticipantLeft:
		return true
	}
	return false
}
