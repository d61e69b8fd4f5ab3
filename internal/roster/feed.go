package roster

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/enums"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
)

// Event is a change-feed signal. The engine treats every event as a coarse
// hint and refetches the affected dataset wholesale rather than patching rows.
type Event struct {
	Type        enums.OutboxEventType
	AggregateID uuid.UUID
}

// Feed delivers change events to the engine.
type Feed interface {
	Events() <-chan Event
}

// MemoryFeed is an in-process feed used by tests and local wiring.
type MemoryFeed struct {
	ch chan Event
}

// NewMemoryFeed builds a buffered in-memory feed.
func NewMemoryFeed(buffer int) *MemoryFeed {
	if buffer <= 0 {
		buffer = 16
	}
	return &MemoryFeed{ch: make(chan Event, buffer)}
}

// Events exposes the event channel.
func (f *MemoryFeed) Events() <-chan Event {
	return f.ch
}

// Publish pushes an event, dropping it if the buffer is full. Dropped events
// are safe because the engine refetches wholesale on the next signal.
func (f *MemoryFeed) Publish(event Event) {
	select {
	case f.ch <- event:
	default:
	}
}

// PubSubFeed adapts a Pub/Sub subscription into a Feed.
type PubSubFeed struct {
	subscription *pubsub.Subscriber
	logg         *logger.Logger
	ch           chan Event
}

// NewPubSubFeed builds a feed that receives ride events from Pub/Sub.
func NewPubSubFeed(subscription *pubsub.Subscriber, logg *logger.Logger, buffer int) (*PubSubFeed, error) {
	if subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &PubSubFeed{
		subscription: subscription,
		logg:         logg,
		ch:           make(chan Event, buffer),
	}, nil
}

// Events exposes the event channel.
func (f *PubSubFeed) Events() <-chan Event {
	return f.ch
}

// Run receives messages until the context is canceled. Messages are always
// acked; the engine's refetch-on-signal model tolerates lost events because
// any later event triggers the same wholesale refresh.
func (f *PubSubFeed) Run(ctx context.Context) error {
	return f.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		defer msg.Ack()

		eventType, err := enums.ParseOutboxEventType(msg.Attributes["event_type"])
		if err != nil {
			f.logg.Warn(f.logg.WithField(ctx, "event_type", msg.Attributes["event_type"]), "unknown feed event type")
			return
		}
		aggregateID, err := uuid.Parse(msg.Attributes["aggregate_id"])
		if err != nil {
			aggregateID = uuid.Nil
		}

		f.offer(Event{Type: eventType, AggregateID: aggregateID})
	})
}

// offer never blocks the Receive callback. A full buffer drops the event,
// the queued ones already force a refetch.
func (f *PubSubFeed) offer(event Event) {
	select {
	case f.ch <- event:
	default:
	}
}
