package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
)

type rideLister interface {
	ListUpcomingBetween(ctx context.Context, from, to time.Time) ([]models.Ride, error)
}

type rosterLister interface {
	ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.RideParticipant, error)
}

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	HasWithLink(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, link string) (bool, error)
}

// RideReminderJob notifies accepted participants about rides starting inside
// the configured horizon. Re-running the job does not duplicate reminders.
type RideReminderJob struct {
	rides         rideLister
	roster        rosterLister
	notifications notificationStore
	logg          *logger.Logger
	horizon       time.Duration
}

// NewRideReminderJob wires the reminder job dependencies.
func NewRideReminderJob(rides rideLister, roster rosterLister, notifications notificationStore, logg *logger.Logger, horizon time.Duration) (*RideReminderJob, error) {
	if rides == nil {
		return nil, fmt.Errorf("rides repository required")
	}
	if roster == nil {
		return nil, fmt.Errorf("participants repository required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	return &RideReminderJob{
		rides:         rides,
		roster:        roster,
		notifications: notifications,
		logg:          logg,
		horizon:       horizon,
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *RideReminderJob) Name() string {
	return "ride-reminder"
}

// Run sends reminders for every upcoming ride, accumulating per-ride failures
// so one bad ride does not starve the rest.
func (j *RideReminderJob) Run(ctx context.Context) error {
	now := time.Now().UTC()
	rides, err := j.rides.ListUpcomingBetween(ctx, now, now.Add(j.horizon))
	if err != nil {
		return fmt.Errorf("list upcoming rides: %w", err)
	}

	var errs error
	reminded := 0
	for i := range rides {
		count, err := j.remindRide(ctx, &rides[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("ride %s: %w", rides[i].ID, err))
			continue
		}
		reminded += count
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"rides":     len(rides),
		"reminders": reminded,
	})
	j.logg.Info(logCtx, "ride reminders processed")
	return errs
}

func (j *RideReminderJob) remindRide(ctx context.Context, ride *models.Ride) (int, error) {
	roster, err := j.roster.ListByRide(ctx, ride.ID)
	if err != nil {
		return 0, fmt.Errorf("load roster: %w", err)
	}

	link := fmt.Sprintf("/rides/%s", ride.ID)
	created := 0
	var errs error
	for _, participant := range roster {
		if participant.Status != enums.ParticipantStatusAccepted {
			continue
		}
		exists, err := j.notifications.HasWithLink(ctx, participant.UserID, enums.NotificationTypeRideReminder, link)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("check reminder for %s: %w", participant.UserID, err))
			continue
		}
		if exists {
			continue
		}
		notification := &models.Notification{
			UserID:  participant.UserID,
			Type:    enums.NotificationTypeRideReminder,
			Title:   "Upcoming ride",
			Message: fmt.Sprintf("%s starts at %s.", ride.Title, ride.RideTime.Format(time.RFC1123)),
			Link:    &link,
		}
		if err := j.notifications.Create(ctx, notification); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("create reminder for %s: %w", participant.UserID, err))
			continue
		}
		created++
	}
	return created, errs
}
