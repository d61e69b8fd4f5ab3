package roster

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/internal/rides"
	"github.com/pelotonhq/peloton-backend/pkg/config"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
)

type fakeStore struct {
	mu           sync.Mutex
	rides        []Ride
	participants []Participant
	ridesErr     error
	fetchCount   int
}

func (f *fakeStore) FetchRides(ctx context.Context) ([]Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCount++
	if f.ridesErr != nil {
		return nil, f.ridesErr
	}
	out := make([]Ride, len(f.rides))
	copy(out, f.rides)
	return out, nil
}

func (f *fakeStore) FetchParticipants(ctx context.Context) ([]Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Participant, len(f.participants))
	copy(out, f.participants)
	return out, nil
}

func (f *fakeStore) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCount
}

type fakeRideBackend struct {
	createErr error
	deleteErr error
	created   *rides.RideResponse
	onCreate  func()
	onDelete  func()
}

func (f *fakeRideBackend) Create(ctx context.Context, userID uuid.UUID, dto rides.CreateRideDTO) (*rides.RideResponse, error) {
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func (f *fakeRideBackend) Delete(ctx context.Context, userID, rideID uuid.UUID) error {
	if f.onDelete != nil {
		f.onDelete()
	}
	return f.deleteErr
}

type fakeParticipantBackend struct {
	joinErr   error
	leaveErr  error
	statusErr error
}

func (f *fakeParticipantBackend) Join(ctx context.Context, userID, rideID uuid.UUID) error {
	return f.joinErr
}

func (f *fakeParticipantBackend) Leave(ctx context.Context, userID, rideID uuid.UUID) error {
	return f.leaveErr
}

func (f *fakeParticipantBackend) SetStatus(ctx context.Context, userID, rideID uuid.UUID, status string) error {
	return f.statusErr
}

func testRide(title string, start time.Time) Ride {
	return Ride{
		ID:            uuid.New(),
		Title:         title,
		StartLocation: "Plaza Mayor",
		RideTime:      start,
		DistanceKM:    40,
		Pace:          enums.PaceChill,
		BikeType:      enums.BikeTypeRoad,
		CreatedBy:     uuid.New(),
		CreatedAt:     time.Now().UTC(),
	}
}

func newTestEngine(t *testing.T, store *fakeStore, rideBE *fakeRideBackend, partBE *fakeParticipantBackend, feed Feed) *Engine {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}
	if rideBE == nil {
		rideBE = &fakeRideBackend{}
	}
	if partBE == nil {
		partBE = &fakeParticipantBackend{}
	}
	if feed == nil {
		feed = NewMemoryFeed(8)
	}
	engine, err := NewEngine(EngineParams{
		Store:        store,
		RideService:  rideBE,
		Participants: partBE,
		Feed:         feed,
		Logger:       logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Config: config.RosterConfig{
			LoadTimeout:    time.Second,
			EventBuffer:    8,
			DebounceWindow: 10 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error building engine: %v", err)
	}
	return engine
}

func TestEngineLoadAllReplacesStateSorted(t *testing.T) {
	now := time.Now().UTC()
	later := testRide("evening loop", now.Add(4*time.Hour))
	earlier := testRide("morning loop", now.Add(time.Hour))
	member := Participant{RideID: earlier.ID, UserID: uuid.New(), Status: enums.ParticipantStatusAccepted, JoinedAt: now}

	store := &fakeStore{rides: []Ride{later, earlier}, participants: []Participant{member}}
	engine := newTestEngine(t, store, nil, nil, nil)

	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot := engine.Snapshot()
	if len(snapshot.Rides) != 2 {
		t.Fatalf("expected 2 rides, got %d", len(snapshot.Rides))
	}
	if snapshot.Rides[0].ID != earlier.ID {
		t.Fatal("rides not ordered by start time ascending")
	}
	if len(snapshot.Participants[earlier.ID]) != 1 {
		t.Fatal("participant not grouped under its ride")
	}
	if !engine.Loaded() {
		t.Fatal("expected engine to report loaded")
	}

	// A second load replaces everything, stale rows do not linger.
	store.mu.Lock()
	store.rides = []Ride{later}
	store.participants = nil
	store.mu.Unlock()
	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot = engine.Snapshot()
	if len(snapshot.Rides) != 1 || snapshot.Rides[0].ID != later.ID {
		t.Fatal("expected wholesale replacement of rides")
	}
	if len(snapshot.Participants) != 0 {
		t.Fatal("expected stale participants to be dropped")
	}
}

func TestEngineLoadAllKeepsStateOnFailure(t *testing.T) {
	ride := testRide("sunday ride", time.Now().UTC().Add(time.Hour))
	store := &fakeStore{rides: []Ride{ride}}
	engine := newTestEngine(t, store, nil, nil, nil)

	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.mu.Lock()
	store.ridesErr = errors.New("connection reset")
	store.mu.Unlock()

	if err := engine.LoadAll(context.Background()); err == nil {
		t.Fatal("expected load failure")
	}
	snapshot := engine.Snapshot()
	if len(snapshot.Rides) != 1 || snapshot.Rides[0].ID != ride.ID {
		t.Fatal("expected previous state to survive a failed load")
	}
}

func TestEngineJoinOptimisticAndRollback(t *testing.T) {
	ride := testRide("gravel day", time.Now().UTC().Add(time.Hour))
	store := &fakeStore{rides: []Ride{ride}}
	partBE := &fakeParticipantBackend{}
	engine := newTestEngine(t, store, nil, partBE, nil)
	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID := uuid.New()
	if err := engine.Join(context.Background(), userID, ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	roster := engine.Snapshot().Participants[ride.ID]
	if len(roster) != 1 || roster[0].Status != enums.ParticipantStatusPending {
		t.Fatal("expected pending roster row after join")
	}
	if !engine.IsParticipant(userID, ride.ID) {
		t.Fatal("expected IsParticipant true after join")
	}

	// Failed join for another user leaves no trace.
	partBE.joinErr = errors.New("backend down")
	otherID := uuid.New()
	if err := engine.Join(context.Background(), otherID, ride.ID); err == nil {
		t.Fatal("expected join failure")
	}
	if engine.IsParticipant(otherID, ride.ID) {
		t.Fatal("expected failed join to roll back")
	}
	if !engine.IsParticipant(userID, ride.ID) {
		t.Fatal("rollback removed an unrelated row")
	}
}

func TestEngineLeaveRestoresOnFailure(t *testing.T) {
	ride := testRide("hill repeats", time.Now().UTC().Add(time.Hour))
	userID := uuid.New()
	store := &fakeStore{
		rides:        []Ride{ride},
		participants: []Participant{{RideID: ride.ID, UserID: userID, Status: enums.ParticipantStatusAccepted, JoinedAt: time.Now().UTC()}},
	}
	partBE := &fakeParticipantBackend{leaveErr: errors.New("backend down")}
	engine := newTestEngine(t, store, nil, partBE, nil)
	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := engine.Leave(context.Background(), userID, ride.ID); err == nil {
		t.Fatal("expected leave failure")
	}
	roster := engine.Snapshot().Participants[ride.ID]
	if len(roster) != 1 || roster[0].Status != enums.ParticipantStatusAccepted {
		t.Fatal("expected failed leave to restore the row")
	}

	partBE.leaveErr = nil
	if err := engine.Leave(context.Background(), userID, ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.IsParticipant(userID, ride.ID) {
		t.Fatal("expected row removed after successful leave")
	}
}

func TestEngineSetStatusRestoresPrevious(t *testing.T) {
	ride := testRide("recovery spin", time.Now().UTC().Add(time.Hour))
	userID := uuid.New()
	store := &fakeStore{
		rides:        []Ride{ride},
		participants: []Participant{{RideID: ride.ID, UserID: userID, Status: enums.ParticipantStatusPending, JoinedAt: time.Now().UTC()}},
	}
	partBE := &fakeParticipantBackend{statusErr: errors.New("backend down")}
	engine := newTestEngine(t, store, nil, partBE, nil)
	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := engine.SetStatus(context.Background(), userID, ride.ID, enums.ParticipantStatusAccepted); err == nil {
		t.Fatal("expected status failure")
	}
	roster := engine.Snapshot().Participants[ride.ID]
	if roster[0].Status != enums.ParticipantStatusPending {
		t.Fatal("expected previous status restored")
	}

	partBE.statusErr = nil
	if err := engine.SetStatus(context.Background(), userID, ride.ID, enums.ParticipantStatusAccepted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	roster = engine.Snapshot().Participants[ride.ID]
	if roster[0].Status != enums.ParticipantStatusAccepted {
		t.Fatal("expected status updated")
	}
}

func TestEngineSetStatusRejectsUnknownStatus(t *testing.T) {
	engine := newTestEngine(t, nil, nil, nil, nil)
	if err := engine.SetStatus(context.Background(), uuid.New(), uuid.New(), enums.ParticipantStatus("maybe")); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEngineCreateRideSwapsProvisional(t *testing.T) {
	userID := uuid.New()
	dto := rides.CreateRideDTO{
		Title:         "coastal century",
		StartLocation: "harbor gate",
		RideTime:      time.Now().UTC().Add(48 * time.Hour),
		DistanceKM:    160,
		Pace:          "speed",
		BikeType:      "road",
	}
	serverID := uuid.New()
	rideBE := &fakeRideBackend{created: &rides.RideResponse{
		ID:            serverID,
		Title:         dto.Title,
		StartLocation: dto.StartLocation,
		RideTime:      dto.RideTime,
		DistanceKM:    dto.DistanceKM,
		Pace:          enums.PaceSpeed,
		BikeType:      enums.BikeTypeRoad,
		CreatedBy:     userID,
		CreatedAt:     time.Now().UTC(),
		Participants: []rides.ParticipantView{
			{UserID: userID, Status: enums.ParticipantStatusAccepted, JoinedAt: time.Now().UTC()},
		},
	}}
	engine := newTestEngine(t, nil, rideBE, nil, nil)

	createdID, err := engine.CreateRide(context.Background(), userID, dto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createdID != serverID {
		t.Fatalf("expected server ride id, got %s", createdID)
	}
	snapshot := engine.Snapshot()
	if len(snapshot.Rides) != 1 || snapshot.Rides[0].ID != serverID {
		t.Fatal("expected provisional ride swapped for the server version")
	}
	if !engine.IsParticipant(userID, serverID) {
		t.Fatal("expected creator on the roster")
	}
}

func TestEngineCreateRideRollsBackOnFailure(t *testing.T) {
	rideBE := &fakeRideBackend{createErr: errors.New("backend down")}
	engine := newTestEngine(t, nil, rideBE, nil, nil)

	_, err := engine.CreateRide(context.Background(), uuid.New(), rides.CreateRideDTO{
		Title:         "ghost ride",
		StartLocation: "nowhere",
		RideTime:      time.Now().UTC().Add(time.Hour),
		DistanceKM:    10,
		Pace:          "chill",
		BikeType:      "mtb",
	})
	if err == nil {
		t.Fatal("expected create failure")
	}
	snapshot := engine.Snapshot()
	if len(snapshot.Rides) != 0 || len(snapshot.Participants) != 0 {
		t.Fatal("expected provisional rows removed after failed create")
	}
}

func TestEngineCreateRideSingleRowAfterConcurrentRefetch(t *testing.T) {
	userID := uuid.New()
	dto := rides.CreateRideDTO{
		Title:         "dawn patrol",
		StartLocation: "old mill",
		RideTime:      time.Now().UTC().Add(24 * time.Hour),
		DistanceKM:    55,
		Pace:          "chill",
		BikeType:      "road",
	}
	serverID := uuid.New()
	serverRide := Ride{
		ID:            serverID,
		Title:         dto.Title,
		StartLocation: dto.StartLocation,
		RideTime:      dto.RideTime,
		DistanceKM:    dto.DistanceKM,
		Pace:          enums.PaceChill,
		BikeType:      enums.BikeTypeRoad,
		CreatedBy:     userID,
		CreatedAt:     time.Now().UTC(),
	}
	store := &fakeStore{
		rides:        []Ride{serverRide},
		participants: []Participant{{RideID: serverID, UserID: userID, Status: enums.ParticipantStatusAccepted, JoinedAt: time.Now().UTC()}},
	}
	rideBE := &fakeRideBackend{created: &rides.RideResponse{
		ID:            serverID,
		Title:         dto.Title,
		StartLocation: dto.StartLocation,
		RideTime:      dto.RideTime,
		DistanceKM:    dto.DistanceKM,
		Pace:          enums.PaceChill,
		BikeType:      enums.BikeTypeRoad,
		CreatedBy:     userID,
		CreatedAt:     serverRide.CreatedAt,
		Participants: []rides.ParticipantView{
			{UserID: userID, Status: enums.ParticipantStatusAccepted, JoinedAt: time.Now().UTC()},
		},
	}}
	engine := newTestEngine(t, store, rideBE, nil, nil)

	// A feed-triggered refetch lands the server ride before the create
	// call returns and the local patch runs.
	rideBE.onCreate = func() {
		if err := engine.LoadAll(context.Background()); err != nil {
			t.Errorf("concurrent load failed: %v", err)
		}
	}

	createdID, err := engine.CreateRide(context.Background(), userID, dto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createdID != serverID {
		t.Fatalf("expected server ride id, got %s", createdID)
	}

	snapshot := engine.Snapshot()
	count := 0
	for _, row := range snapshot.Rides {
		if row.ID == serverID {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one row for the ride, got %d (rides=%d)", count, len(snapshot.Rides))
	}
}

func TestEngineDeleteRideRestoreDoesNotDuplicate(t *testing.T) {
	ride := testRide("forest loop", time.Now().UTC().Add(time.Hour))
	store := &fakeStore{rides: []Ride{ride}}
	rideBE := &fakeRideBackend{deleteErr: errors.New("backend down")}
	engine := newTestEngine(t, store, rideBE, nil, nil)
	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The delete never lands, so a concurrent refetch still carries the
	// ride when the restore path runs.
	rideBE.onDelete = func() {
		if err := engine.LoadAll(context.Background()); err != nil {
			t.Errorf("concurrent load failed: %v", err)
		}
	}

	if err := engine.DeleteRide(context.Background(), ride.CreatedBy, ride.ID); err == nil {
		t.Fatal("expected delete failure")
	}

	snapshot := engine.Snapshot()
	count := 0
	for _, row := range snapshot.Rides {
		if row.ID == ride.ID {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one row for the ride, got %d (rides=%d)", count, len(snapshot.Rides))
	}
}

func TestEngineDeleteRideRestoresOnFailure(t *testing.T) {
	ride := testRide("club ride", time.Now().UTC().Add(time.Hour))
	member := Participant{RideID: ride.ID, UserID: uuid.New(), Status: enums.ParticipantStatusAccepted, JoinedAt: time.Now().UTC()}
	store := &fakeStore{rides: []Ride{ride}, participants: []Participant{member}}
	rideBE := &fakeRideBackend{deleteErr: errors.New("backend down")}
	engine := newTestEngine(t, store, rideBE, nil, nil)
	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := engine.DeleteRide(context.Background(), ride.CreatedBy, ride.ID); err == nil {
		t.Fatal("expected delete failure")
	}
	snapshot := engine.Snapshot()
	if len(snapshot.Rides) != 1 {
		t.Fatal("expected ride restored after failed delete")
	}
	if len(snapshot.Participants[ride.ID]) != 1 {
		t.Fatal("expected roster restored after failed delete")
	}

	rideBE.deleteErr = nil
	if err := engine.DeleteRide(context.Background(), ride.CreatedBy, ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot = engine.Snapshot()
	if len(snapshot.Rides) != 0 || len(snapshot.Participants) != 0 {
		t.Fatal("expected ride and roster removed")
	}
}

func TestEngineRunRefetchesOnFeedEvents(t *testing.T) {
	ride := testRide("tempo ride", time.Now().UTC().Add(time.Hour))
	store := &fakeStore{}
	feed := NewMemoryFeed(8)
	engine := newTestEngine(t, store, nil, nil, feed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = engine.Run(ctx)
	}()

	store.mu.Lock()
	store.rides = []Ride{ride}
	store.mu.Unlock()

	// A burst of events collapses into refetches that land the new ride.
	feed.Publish(Event{Type: enums.EventRideCreated, AggregateID: ride.ID})
	feed.Publish(Event{Type: enums.EventParticipantJoined, AggregateID: ride.ID})

	deadline := time.After(2 * time.Second)
	for {
		if len(engine.Snapshot().Rides) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("engine did not refetch after feed events")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if store.fetches() == 0 {
		t.Fatal("expected at least one fetch")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop on context cancel")
	}
}

func TestEngineSnapshotIsACopy(t *testing.T) {
	ride := testRide("solo ride", time.Now().UTC().Add(time.Hour))
	store := &fakeStore{rides: []Ride{ride}}
	engine := newTestEngine(t, store, nil, nil, nil)
	if err := engine.LoadAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := engine.Snapshot()
	snapshot.Rides[0].Title = "mutated"
	if engine.Snapshot().Rides[0].Title != "solo ride" {
		t.Fatal("snapshot mutation leaked into engine state")
	}
}
