package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
)

type fakeRideLister struct {
	rides []models.Ride
	err   error
}

func (f *fakeRideLister) ListUpcomingBetween(ctx context.Context, from, to time.Time) ([]models.Ride, error) {
	return f.rides, f.err
}

type fakeRosterLister struct {
	roster map[uuid.UUID][]models.RideParticipant
	err    error
}

func (f *fakeRosterLister) ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.RideParticipant, error) {
	return f.roster[rideID], f.err
}

type fakeNotificationStore struct {
	existing map[string]bool
	created  []models.Notification
	err      error
}

func (f *fakeNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotificationStore) HasWithLink(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, link string) (bool, error) {
	return f.existing[userID.String()+link], nil
}

func newTestJob(t *testing.T, rides *fakeRideLister, roster rosterLister, store *fakeNotificationStore) *RideReminderJob {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	job, err := NewRideReminderJob(rides, roster, store, logg, time.Hour)
	if err != nil {
		t.Fatalf("NewRideReminderJob: %v", err)
	}
	return job
}

func TestReminderNotifiesAcceptedParticipantsOnly(t *testing.T) {
	rideID := uuid.New()
	accepted := uuid.New()
	pending := uuid.New()
	rides := &fakeRideLister{rides: []models.Ride{{ID: rideID, Title: "Dawn Patrol", RideTime: time.Now().Add(30 * time.Minute)}}}
	roster := &fakeRosterLister{roster: map[uuid.UUID][]models.RideParticipant{
		rideID: {
			{RideID: rideID, UserID: accepted, Status: enums.ParticipantStatusAccepted},
			{RideID: rideID, UserID: pending, Status: enums.ParticipantStatusPending},
		},
	}}
	store := &fakeNotificationStore{}
	job := newTestJob(t, rides, roster, store)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(store.created))
	}
	if store.created[0].UserID != accepted {
		t.Fatalf("reminded the wrong user: %s", store.created[0].UserID)
	}
	if store.created[0].Type != enums.NotificationTypeRideReminder {
		t.Fatalf("unexpected notification type %s", store.created[0].Type)
	}
}

func TestReminderDoesNotDuplicate(t *testing.T) {
	rideID := uuid.New()
	userID := uuid.New()
	link := "/rides/" + rideID.String()
	rides := &fakeRideLister{rides: []models.Ride{{ID: rideID, Title: "Dawn Patrol", RideTime: time.Now().Add(30 * time.Minute)}}}
	roster := &fakeRosterLister{roster: map[uuid.UUID][]models.RideParticipant{
		rideID: {{RideID: rideID, UserID: userID, Status: enums.ParticipantStatusAccepted}},
	}}
	store := &fakeNotificationStore{existing: map[string]bool{userID.String() + link: true}}
	job := newTestJob(t, rides, roster, store)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.created) != 0 {
		t.Fatalf("expected no duplicate reminders, got %d", len(store.created))
	}
}

func TestReminderContinuesPastFailingRide(t *testing.T) {
	badRide := uuid.New()
	goodRide := uuid.New()
	userID := uuid.New()
	rides := &fakeRideLister{rides: []models.Ride{
		{ID: badRide, Title: "Broken", RideTime: time.Now().Add(time.Hour)},
		{ID: goodRide, Title: "Working", RideTime: time.Now().Add(time.Hour)},
	}}
	roster := &rosterListerPerRide{
		failFor: badRide,
		roster: map[uuid.UUID][]models.RideParticipant{
			goodRide: {{RideID: goodRide, UserID: userID, Status: enums.ParticipantStatusAccepted}},
		},
	}
	store := &fakeNotificationStore{}
	job := newTestJob(t, rides, roster, store)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error for the failing ride")
	}
	if len(store.created) != 1 || store.created[0].UserID != userID {
		t.Fatalf("the healthy ride should still be processed, got %+v", store.created)
	}
}

type rosterListerPerRide struct {
	failFor uuid.UUID
	roster  map[uuid.UUID][]models.RideParticipant
}

func (f *rosterListerPerRide) ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.RideParticipant, error) {
	if rideID == f.failFor {
		return nil, errors.New("roster unavailable")
	}
	return f.roster[rideID], nil
}
