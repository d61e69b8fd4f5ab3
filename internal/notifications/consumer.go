package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	"github.com/pelotonhq/peloton-backend/pkg/geo"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
	"github.com/pelotonhq/peloton-backend/pkg/outbox"
	"github.com/pelotonhq/peloton-backend/pkg/outbox/idempotency"
	"github.com/pelotonhq/peloton-backend/pkg/outbox/payloads"
)

const rideNotificationConsumer = "ride-notifications"

// Users with no bike type preference receive alerts for every bike type.

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type notifiableUsers interface {
	ListNotifiable(ctx context.Context) ([]models.User, error)
}

type rideFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
}

// Consumer watches ride events. It fans out nearby-ride notifications to
// users who opted in and sit inside the ride's notification radius, and
// alerts ride creators when someone joins their roster.
type Consumer struct {
	repo         repository
	users        notifiableUsers
	rides        rideFinder
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a ride notification consumer.
func NewConsumer(repo repository, users notifiableUsers, rides rideFinder, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if rides == nil {
		return nil, fmt.Errorf("rides repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("ride subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		users:        users,
		rides:        rides,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	switch eventType {
	case string(enums.EventRideCreated), string(enums.EventParticipantJoined):
	default:
		c.logg.Info(logCtx, "skipping unhandled event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, rideNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if eventType == string(enums.EventParticipantJoined) {
		var payload payloads.ParticipantChangedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logg.Error(logCtx, "failed to parse payload", err)
			_ = c.idempotency.Delete(ctx, rideNotificationConsumer, eventID)
			return processResult{nack: true}
		}
		logCtx = c.logg.WithRideID(logCtx, payload.RideID.String())
		if err := c.notifyCreator(ctx, payload, logCtx); err != nil {
			c.logg.Error(logCtx, "roster notification failed", err)
			_ = c.idempotency.Delete(ctx, rideNotificationConsumer, eventID)
			return processResult{nack: true}
		}
		return processResult{ack: true}
	}

	var payload payloads.RideChangedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, rideNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithRideID(logCtx, payload.RideID.String())
	if err := c.fanOut(ctx, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "notification fan-out failed", err)
		_ = c.idempotency.Delete(ctx, rideNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

// notifyCreator alerts the ride creator about a new roster join. The creator's
// own auto-join on ride creation is skipped.
func (c *Consumer) notifyCreator(ctx context.Context, payload payloads.ParticipantChangedEvent, logCtx context.Context) error {
	if payload.RideID == uuid.Nil || payload.UserID == uuid.Nil {
		return fmt.Errorf("ride or user id missing")
	}

	ride, err := c.rides.FindByID(ctx, payload.RideID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Info(logCtx, "ride gone, dropping roster notification")
			return nil
		}
		return fmt.Errorf("load ride: %w", err)
	}
	if ride.CreatedBy == payload.UserID {
		return nil
	}

	link := fmt.Sprintf("/rides/%s", payload.RideID)
	notification := &models.Notification{
		UserID:  ride.CreatedBy,
		Type:    enums.NotificationTypeRosterUpdate,
		Title:   "New join request",
		Message: fmt.Sprintf("A rider wants to join %s.", ride.Title),
		Link:    &link,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("create roster notification: %w", err)
	}

	c.logg.Info(logCtx, "roster notification created")
	return nil
}

func (c *Consumer) fanOut(ctx context.Context, payload payloads.RideChangedEvent, logCtx context.Context) error {
	if payload.RideID == uuid.Nil {
		return fmt.Errorf("ride id missing")
	}
	if payload.Latitude == nil || payload.Longitude == nil {
		c.logg.Info(logCtx, "ride has no location, skipping proximity alerts")
		return nil
	}

	candidates, err := c.users.ListNotifiable(ctx)
	if err != nil {
		return fmt.Errorf("list notifiable users: %w", err)
	}

	notified := 0
	for i := range candidates {
		user := &candidates[i]
		if !c.shouldNotify(user, payload) {
			continue
		}
		link := fmt.Sprintf("/rides/%s", payload.RideID)
		notification := &models.Notification{
			UserID:  user.ID,
			Type:    enums.NotificationTypeRideNearby,
			Title:   "New ride near you",
			Message: fmt.Sprintf("%s starts from %s.", payload.Title, payload.StartLocation),
			Link:    &link,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return fmt.Errorf("create notification for %s: %w", user.ID, err)
		}
		notified++
	}

	c.logg.Info(c.logg.WithField(logCtx, "notified", notified), "ride notifications created")
	return nil
}

func (c *Consumer) shouldNotify(user *models.User, payload payloads.RideChangedEvent) bool {
	if user.ID == payload.CreatedBy {
		return false
	}
	if user.Latitude == nil || user.Longitude == nil {
		return false
	}
	if len(user.NotificationBikeTypes) > 0 {
		match := false
		for _, bt := range user.NotificationBikeTypes {
			if bt == payload.BikeType.String() {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	radius := user.NotificationRadiusKM
	if payload.RadiusKM != nil && *payload.RadiusKM < radius {
		radius = *payload.RadiusKM
	}
	return geo.WithinRadiusKM(*user.Latitude, *user.Longitude, *payload.Latitude, *payload.Longitude, radius)
}
