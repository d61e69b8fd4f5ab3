package notifications

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
	"github.com/pelotonhq/peloton-backend/pkg/outbox/payloads"
)

type fakeNotificationsRepo struct {
	created []models.Notification
	err     error
}

func (f *fakeNotificationsRepo) Create(ctx context.Context, n *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *n)
	return nil
}

type fakeUsers struct {
	users []models.User
	err   error
}

func (f *fakeUsers) ListNotifiable(ctx context.Context) ([]models.User, error) {
	return f.users, f.err
}

type fakeRides struct {
	ride *models.Ride
	err  error
}

func (f *fakeRides) FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ride, nil
}

func newTestConsumer(repo *fakeNotificationsRepo, users *fakeUsers) *Consumer {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return &Consumer{repo: repo, users: users, rides: &fakeRides{}, logg: logg}
}

func ptr[T any](v T) *T { return &v }

func nearbyRide(createdBy uuid.UUID) payloads.RideChangedEvent {
	return payloads.RideChangedEvent{
		RideID:        uuid.New(),
		Title:         "Morning Loop",
		StartLocation: "Market Street",
		BikeType:      enums.BikeTypeRoad,
		Latitude:      ptr(52.5200),
		Longitude:     ptr(13.4050),
		CreatedBy:     createdBy,
	}
}

func nearbyUser() models.User {
	return models.User{
		ID:                   uuid.New(),
		NotificationRadiusKM: 25,
		Latitude:             ptr(52.5210),
		Longitude:            ptr(13.4060),
	}
}

func TestShouldNotifySkipsCreator(t *testing.T) {
	c := newTestConsumer(&fakeNotificationsRepo{}, &fakeUsers{})
	user := nearbyUser()
	payload := nearbyRide(user.ID)

	if c.shouldNotify(&user, payload) {
		t.Fatal("creator should not be notified about their own ride")
	}
}

func TestShouldNotifySkipsUsersWithoutLocation(t *testing.T) {
	c := newTestConsumer(&fakeNotificationsRepo{}, &fakeUsers{})
	user := nearbyUser()
	user.Latitude = nil

	if c.shouldNotify(&user, nearbyRide(uuid.New())) {
		t.Fatal("users without a location should never match")
	}
}

func TestShouldNotifyFiltersBikeType(t *testing.T) {
	c := newTestConsumer(&fakeNotificationsRepo{}, &fakeUsers{})
	payload := nearbyRide(uuid.New())

	user := nearbyUser()
	user.NotificationBikeTypes = pq.StringArray{"mtb"}
	if c.shouldNotify(&user, payload) {
		t.Fatal("road ride should not match an mtb-only preference")
	}

	user.NotificationBikeTypes = pq.StringArray{"road", "mtb"}
	if !c.shouldNotify(&user, payload) {
		t.Fatal("road ride should match a preference including road")
	}

	user.NotificationBikeTypes = nil
	if !c.shouldNotify(&user, payload) {
		t.Fatal("empty preference should match every bike type")
	}
}

func TestShouldNotifyRespectsRadius(t *testing.T) {
	c := newTestConsumer(&fakeNotificationsRepo{}, &fakeUsers{})
	payload := nearbyRide(uuid.New())

	far := nearbyUser()
	far.Latitude = ptr(48.1351)
	far.Longitude = ptr(11.5820)
	if c.shouldNotify(&far, payload) {
		t.Fatal("a user hundreds of km away should not match")
	}

	// The ride's own radius caps the user's preference when smaller.
	tight := nearbyUser()
	tight.NotificationRadiusKM = 100
	capped := payload
	capped.RadiusKM = ptr(0.01)
	if c.shouldNotify(&tight, capped) {
		t.Fatal("ride radius smaller than the distance should not match")
	}
}

func TestFanOutCreatesNotificationsForMatches(t *testing.T) {
	repo := &fakeNotificationsRepo{}
	creator := uuid.New()
	match := nearbyUser()
	noLocation := nearbyUser()
	noLocation.Longitude = nil
	users := &fakeUsers{users: []models.User{match, noLocation, {ID: creator, Latitude: ptr(52.52), Longitude: ptr(13.40), NotificationRadiusKM: 25}}}
	c := newTestConsumer(repo, users)

	payload := nearbyRide(creator)
	if err := c.fanOut(context.Background(), payload, context.Background()); err != nil {
		t.Fatalf("fanOut: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	n := repo.created[0]
	if n.UserID != match.ID {
		t.Fatalf("notified the wrong user: %s", n.UserID)
	}
	if n.Type != enums.NotificationTypeRideNearby {
		t.Fatalf("unexpected notification type %s", n.Type)
	}
	if n.Link == nil || *n.Link != "/rides/"+payload.RideID.String() {
		t.Fatalf("unexpected link %v", n.Link)
	}
}

func TestFanOutSkipsRidesWithoutLocation(t *testing.T) {
	repo := &fakeNotificationsRepo{}
	users := &fakeUsers{users: []models.User{nearbyUser()}}
	c := newTestConsumer(repo, users)

	payload := nearbyRide(uuid.New())
	payload.Latitude = nil
	payload.Longitude = nil
	if err := c.fanOut(context.Background(), payload, context.Background()); err != nil {
		t.Fatalf("fanOut: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(repo.created))
	}
}

func TestNotifyCreatorOnJoin(t *testing.T) {
	repo := &fakeNotificationsRepo{}
	creator := uuid.New()
	rideID := uuid.New()
	c := newTestConsumer(repo, &fakeUsers{})
	c.rides = &fakeRides{ride: &models.Ride{ID: rideID, Title: "Morning Loop", CreatedBy: creator}}

	payload := payloads.ParticipantChangedEvent{
		RideID: rideID,
		UserID: uuid.New(),
		Status: enums.ParticipantStatusPending,
	}
	if err := c.notifyCreator(context.Background(), payload, context.Background()); err != nil {
		t.Fatalf("notifyCreator: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	n := repo.created[0]
	if n.UserID != creator {
		t.Fatalf("notification should target the creator, got %s", n.UserID)
	}
	if n.Type != enums.NotificationTypeRosterUpdate {
		t.Fatalf("unexpected notification type %s", n.Type)
	}
}

func TestNotifyCreatorSkipsSelfJoin(t *testing.T) {
	repo := &fakeNotificationsRepo{}
	creator := uuid.New()
	rideID := uuid.New()
	c := newTestConsumer(repo, &fakeUsers{})
	c.rides = &fakeRides{ride: &models.Ride{ID: rideID, Title: "Morning Loop", CreatedBy: creator}}

	payload := payloads.ParticipantChangedEvent{RideID: rideID, UserID: creator}
	if err := c.notifyCreator(context.Background(), payload, context.Background()); err != nil {
		t.Fatalf("notifyCreator: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("creator auto-join should not notify, got %d", len(repo.created))
	}
}

func TestNotifyCreatorToleratesDeletedRide(t *testing.T) {
	repo := &fakeNotificationsRepo{}
	c := newTestConsumer(repo, &fakeUsers{})
	c.rides = &fakeRides{err: gorm.ErrRecordNotFound}

	payload := payloads.ParticipantChangedEvent{RideID: uuid.New(), UserID: uuid.New()}
	if err := c.notifyCreator(context.Background(), payload, context.Background()); err != nil {
		t.Fatalf("a deleted ride should be dropped quietly, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(repo.created))
	}
}
