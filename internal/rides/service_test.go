package rides

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
	"github.com/pelotonhq/peloton-backend/pkg/outbox"
	"github.com/pelotonhq/peloton-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeRepo struct {
	created   *models.Ride
	createErr error
	updates   map[string]any
	updateErr error
	deleted   []uuid.UUID
	deleteErr error
	byID      map[uuid.UUID]*models.Ride
	listRows  []models.Ride
	listNext  *pagination.Cursor
	listErr   error
}

func (f *fakeRepo) CreateTx(tx *gorm.DB, ride *models.Ride) error {
	if f.createErr != nil {
		return f.createErr
	}
	if ride.ID == uuid.Nil {
		ride.ID = uuid.New()
	}
	f.created = ride
	if f.byID == nil {
		f.byID = map[uuid.UUID]*models.Ride{}
	}
	f.byID[ride.ID] = ride
	return nil
}

func (f *fakeRepo) UpdateTx(tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = updates
	return nil
}

func (f *fakeRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	ride, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return ride, nil
}

func (f *fakeRepo) List(ctx context.Context, params listRidesParams) ([]models.Ride, *pagination.Cursor, error) {
	return f.listRows, f.listNext, f.listErr
}

type fakeParticipantStore struct {
	upserted []models.RideParticipant
	roster   []models.RideParticipant
}

func (f *fakeParticipantStore) UpsertTx(tx *gorm.DB, row models.RideParticipant) error {
	f.upserted = append(f.upserted, row)
	return nil
}

func (f *fakeParticipantStore) ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.RideParticipant, error) {
	return f.roster, nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeGroups struct {
	member  bool
	err     error
	checked []uuid.UUID
}

func (f *fakeGroups) IsMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	f.checked = append(f.checked, groupID)
	return f.member, f.err
}

func newTestService(t *testing.T, repo *fakeRepo, store *fakeParticipantStore, events *fakeEmitter) Service {
	t.Helper()
	svc, err := NewService(fakeTxRunner{}, repo, store, &fakeGroups{member: true}, events)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func validCreateDTO() CreateRideDTO {
	return CreateRideDTO{
		Title:         "Sunday Hills",
		StartLocation: "Town Square",
		RideTime:      time.Now().Add(48 * time.Hour),
		DistanceKM:    42,
		Pace:          "speed",
		BikeType:      "road",
	}
}

func TestCreateRejectsPastRideTime(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeParticipantStore{}, &fakeEmitter{})

	dto := validCreateDTO()
	dto.RideTime = time.Now().Add(-time.Hour)
	_, err := svc.Create(context.Background(), uuid.New(), dto)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateJoinsCreatorAccepted(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{}
	store := &fakeParticipantStore{}
	events := &fakeEmitter{}
	svc := newTestService(t, repo, store, events)

	resp, err := svc.Create(context.Background(), userID, validCreateDTO())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.ID != repo.created.ID {
		t.Fatalf("response id %s does not match created ride %s", resp.ID, repo.created.ID)
	}

	if len(store.upserted) != 1 {
		t.Fatalf("expected creator roster row, got %d", len(store.upserted))
	}
	if store.upserted[0].Status != enums.ParticipantStatusAccepted {
		t.Fatalf("creator should be accepted, got %s", store.upserted[0].Status)
	}

	if len(events.events) != 2 {
		t.Fatalf("expected ride and participant events, got %d", len(events.events))
	}
	if events.events[0].EventType != enums.EventRideCreated {
		t.Fatalf("first event should be ride_created, got %s", events.events[0].EventType)
	}
	if events.events[1].EventType != enums.EventParticipantJoined {
		t.Fatalf("second event should be participant_joined, got %s", events.events[1].EventType)
	}
}

func TestCreateGroupRideRequiresMembership(t *testing.T) {
	groupID := uuid.New()
	checker := &fakeGroups{member: false}
	svc, err := NewService(fakeTxRunner{}, &fakeRepo{}, &fakeParticipantStore{}, checker, &fakeEmitter{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	dto := validCreateDTO()
	dto.GroupID = &groupID
	_, err = svc.Create(context.Background(), uuid.New(), dto)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(checker.checked) != 1 || checker.checked[0] != groupID {
		t.Fatalf("expected membership check for %s, got %v", groupID, checker.checked)
	}

	checker.member = true
	if _, err := svc.Create(context.Background(), uuid.New(), dto); err != nil {
		t.Fatalf("member should create the group ride: %v", err)
	}
}

func TestCreateRequiresAuthenticatedUser(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeParticipantStore{}, &fakeEmitter{})

	_, err := svc.Create(context.Background(), uuid.Nil, validCreateDTO())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestUpdateOnlyCreatorAllowed(t *testing.T) {
	rideID := uuid.New()
	creator := uuid.New()
	repo := &fakeRepo{byID: map[uuid.UUID]*models.Ride{
		rideID: {ID: rideID, CreatedBy: creator},
	}}
	svc := newTestService(t, repo, &fakeParticipantStore{}, &fakeEmitter{})

	title := "New Title"
	_, err := svc.Update(context.Background(), uuid.New(), rideID, UpdateRideDTO{Title: &title})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateEmitsRideUpdated(t *testing.T) {
	rideID := uuid.New()
	creator := uuid.New()
	repo := &fakeRepo{byID: map[uuid.UUID]*models.Ride{
		rideID: {ID: rideID, CreatedBy: creator},
	}}
	events := &fakeEmitter{}
	svc := newTestService(t, repo, &fakeParticipantStore{}, events)

	title := "Coastal Loop"
	if _, err := svc.Update(context.Background(), creator, rideID, UpdateRideDTO{Title: &title}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if repo.updates["title"] != title {
		t.Fatalf("expected title update, got %+v", repo.updates)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventRideUpdated {
		t.Fatalf("expected one ride_updated event, got %+v", events.events)
	}
}

func TestUpdateWithNoFieldsSkipsWrite(t *testing.T) {
	rideID := uuid.New()
	creator := uuid.New()
	repo := &fakeRepo{byID: map[uuid.UUID]*models.Ride{
		rideID: {ID: rideID, CreatedBy: creator},
	}}
	events := &fakeEmitter{}
	svc := newTestService(t, repo, &fakeParticipantStore{}, events)

	if _, err := svc.Update(context.Background(), creator, rideID, UpdateRideDTO{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if repo.updates != nil {
		t.Fatalf("expected no write, got %+v", repo.updates)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no events, got %+v", events.events)
	}
}

func TestUpdateRejectsPastRideTime(t *testing.T) {
	rideID := uuid.New()
	creator := uuid.New()
	repo := &fakeRepo{byID: map[uuid.UUID]*models.Ride{
		rideID: {ID: rideID, CreatedBy: creator},
	}}
	svc := newTestService(t, repo, &fakeParticipantStore{}, &fakeEmitter{})

	past := time.Now().Add(-time.Minute)
	_, err := svc.Update(context.Background(), creator, rideID, UpdateRideDTO{RideTime: &past})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteOnlyCreatorAllowed(t *testing.T) {
	rideID := uuid.New()
	repo := &fakeRepo{byID: map[uuid.UUID]*models.Ride{
		rideID: {ID: rideID, CreatedBy: uuid.New()},
	}}
	svc := newTestService(t, repo, &fakeParticipantStore{}, &fakeEmitter{})

	err := svc.Delete(context.Background(), uuid.New(), rideID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDeleteEmitsRideDeleted(t *testing.T) {
	rideID := uuid.New()
	creator := uuid.New()
	repo := &fakeRepo{byID: map[uuid.UUID]*models.Ride{
		rideID: {ID: rideID, CreatedBy: creator},
	}}
	events := &fakeEmitter{}
	svc := newTestService(t, repo, &fakeParticipantStore{}, events)

	if err := svc.Delete(context.Background(), creator, rideID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != rideID {
		t.Fatalf("expected ride deletion, got %+v", repo.deleted)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventRideDeleted {
		t.Fatalf("expected one ride_deleted event, got %+v", events.events)
	}
}

func TestGetUnknownRide(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeParticipantStore{}, &fakeEmitter{})

	_, err := svc.Get(context.Background(), uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestListRejectsInvalidFilters(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeParticipantStore{}, &fakeEmitter{})

	if _, err := svc.List(context.Background(), ListParams{Pace: "sprint"}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for pace, got %v", err)
	}
	if _, err := svc.List(context.Background(), ListParams{BikeType: "gravel"}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bike type, got %v", err)
	}
	if _, err := svc.List(context.Background(), ListParams{Cursor: "!!not-base64!!"}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for cursor, got %v", err)
	}
}

func TestListEncodesNextCursor(t *testing.T) {
	rideID := uuid.New()
	next := pagination.Cursor{Key: time.Now().Add(time.Hour).UTC(), ID: uuid.New()}
	repo := &fakeRepo{
		listRows: []models.Ride{{ID: rideID, CreatedBy: uuid.New()}},
		listNext: &next,
	}
	svc := newTestService(t, repo, &fakeParticipantStore{}, &fakeEmitter{})

	result, err := svc.List(context.Background(), ListParams{Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID != rideID {
		t.Fatalf("unexpected items %+v", result.Items)
	}
	if result.Cursor != pagination.EncodeCursor(next) {
		t.Fatalf("cursor mismatch: %q", result.Cursor)
	}
}
