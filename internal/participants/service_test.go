package participants

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
	"github.com/pelotonhq/peloton-backend/pkg/outbox"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeRepo struct {
	upserted       []models.RideParticipant
	upsertErr      error
	updateAffected int64
	updateErr      error
	deleteAffected int64
	deleteErr      error
	findRow        *models.RideParticipant
	findErr        error
}

func (f *fakeRepo) UpsertTx(tx *gorm.DB, row models.RideParticipant) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, row)
	return nil
}

func (f *fakeRepo) UpdateStatusTx(tx *gorm.DB, rideID, userID uuid.UUID, status string) (int64, error) {
	return f.updateAffected, f.updateErr
}

func (f *fakeRepo) DeleteTx(tx *gorm.DB, rideID, userID uuid.UUID) (int64, error) {
	return f.deleteAffected, f.deleteErr
}

func (f *fakeRepo) Find(ctx context.Context, rideID, userID uuid.UUID) (*models.RideParticipant, error) {
	return f.findRow, f.findErr
}

type fakeRideFinder struct {
	ride *models.Ride
	err  error
}

func (f *fakeRideFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ride, nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestService(t *testing.T, repo *fakeRepo, rides *fakeRideFinder, events *fakeEmitter) Service {
	t.Helper()
	svc, err := NewService(fakeTxRunner{}, repo, rides, events)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestJoinUpsertsPendingRow(t *testing.T) {
	userID := uuid.New()
	rideID := uuid.New()
	repo := &fakeRepo{}
	events := &fakeEmitter{}
	svc := newTestService(t, repo, &fakeRideFinder{ride: &models.Ride{ID: rideID}}, events)

	if err := svc.Join(context.Background(), userID, rideID); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if len(repo.upserted) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(repo.upserted))
	}
	row := repo.upserted[0]
	if row.Status != enums.ParticipantStatusPending {
		t.Fatalf("expected pending status, got %s", row.Status)
	}
	if row.RideID != rideID || row.UserID != userID {
		t.Fatalf("unexpected row %+v", row)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventParticipantJoined {
		t.Fatalf("expected one participant_joined event, got %+v", events.events)
	}
}

func TestJoinUnknownRide(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeRideFinder{err: gorm.ErrRecordNotFound}, &fakeEmitter{})

	err := svc.Join(context.Background(), uuid.New(), uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestJoinRequiresAuthenticatedUser(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeRideFinder{ride: &models.Ride{}}, &fakeEmitter{})

	err := svc.Join(context.Background(), uuid.Nil, uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLeaveWithoutMembershipIsQuiet(t *testing.T) {
	rideID := uuid.New()
	events := &fakeEmitter{}
	svc := newTestService(t, &fakeRepo{deleteAffected: 0}, &fakeRideFinder{ride: &models.Ride{ID: rideID}}, events)

	if err := svc.Leave(context.Background(), uuid.New(), rideID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no events for a no-op leave, got %+v", events.events)
	}
}

func TestLeaveEmitsWhenRowDeleted(t *testing.T) {
	rideID := uuid.New()
	events := &fakeEmitter{}
	svc := newTestService(t, &fakeRepo{deleteAffected: 1}, &fakeRideFinder{ride: &models.Ride{ID: rideID}}, events)

	if err := svc.Leave(context.Background(), uuid.New(), rideID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventParticipantLeft {
		t.Fatalf("expected one participant_left event, got %+v", events.events)
	}
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeRideFinder{ride: &models.Ride{}}, &fakeEmitter{})

	err := svc.SetStatus(context.Background(), uuid.New(), uuid.New(), "maybe")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetStatusRequiresMembership(t *testing.T) {
	rideID := uuid.New()
	svc := newTestService(t, &fakeRepo{updateAffected: 0}, &fakeRideFinder{ride: &models.Ride{ID: rideID}}, &fakeEmitter{})

	err := svc.SetStatus(context.Background(), uuid.New(), rideID, "accepted")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSetStatusEmitsChange(t *testing.T) {
	rideID := uuid.New()
	events := &fakeEmitter{}
	svc := newTestService(t, &fakeRepo{updateAffected: 1}, &fakeRideFinder{ride: &models.Ride{ID: rideID}}, events)

	if err := svc.SetStatus(context.Background(), uuid.New(), rideID, "declined"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventParticipantStatusChanged {
		t.Fatalf("expected one status_changed event, got %+v", events.events)
	}
}

func TestIsParticipant(t *testing.T) {
	rideID := uuid.New()
	userID := uuid.New()

	svc := newTestService(t, &fakeRepo{findRow: &models.RideParticipant{RideID: rideID, UserID: userID}}, &fakeRideFinder{}, &fakeEmitter{})
	ok, err := svc.IsParticipant(context.Background(), userID, rideID)
	if err != nil || !ok {
		t.Fatalf("expected member, got ok=%v err=%v", ok, err)
	}

	svc = newTestService(t, &fakeRepo{findErr: gorm.ErrRecordNotFound}, &fakeRideFinder{}, &fakeEmitter{})
	ok, err = svc.IsParticipant(context.Background(), userID, rideID)
	if err != nil || ok {
		t.Fatalf("expected non-member, got ok=%v err=%v", ok, err)
	}
}

func TestJoinPropagatesRepoFailure(t *testing.T) {
	rideID := uuid.New()
	repo := &fakeRepo{upsertErr: errors.New("connection reset")}
	events := &fakeEmitter{}
	svc := newTestService(t, repo, &fakeRideFinder{ride: &models.Ride{ID: rideID}}, events)

	err := svc.Join(context.Background(), uuid.New(), rideID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no events on failure, got %+v", events.events)
	}
}
