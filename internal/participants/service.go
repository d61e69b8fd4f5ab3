package participants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
	"github.com/pelotonhq/peloton-backend/pkg/outbox"
	"github.com/pelotonhq/peloton-backend/pkg/outbox/payloads"
)

// Service defines roster membership operations. A user holds at most one row
// per ride; joining twice refreshes the existing row instead of duplicating it.
type Service interface {
	Join(ctx context.Context, userID, rideID uuid.UUID) error
	Leave(ctx context.Context, userID, rideID uuid.UUID) error
	SetStatus(ctx context.Context, userID, rideID uuid.UUID, status string) error
	IsParticipant(ctx context.Context, userID, rideID uuid.UUID) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type repository interface {
	UpsertTx(tx *gorm.DB, row models.RideParticipant) error
	UpdateStatusTx(tx *gorm.DB, rideID, userID uuid.UUID, status string) (int64, error)
	DeleteTx(tx *gorm.DB, rideID, userID uuid.UUID) (int64, error)
	Find(ctx context.Context, rideID, userID uuid.UUID) (*models.RideParticipant, error)
}

type rideFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	db     txRunner
	repo   repository
	rides  rideFinder
	events eventEmitter
}

// NewService wires the participants service dependencies.
func NewService(db txRunner, repo repository, rides rideFinder, events eventEmitter) (Service, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "participants repository required")
	}
	if rides == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rides repository required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	return &service{db: db, repo: repo, rides: rides, events: events}, nil
}

// Join adds the user to the roster with a pending status.
func (s *service) Join(ctx context.Context, userID, rideID uuid.UUID) error {
	if err := s.validatePair(userID, rideID); err != nil {
		return err
	}
	if err := s.ensureRide(ctx, rideID); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row := models.RideParticipant{
			RideID: rideID,
			UserID: userID,
			Status: enums.ParticipantStatusPending,
		}
		if err := s.repo.UpsertTx(tx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "join ride")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventParticipantJoined,
			AggregateType: enums.AggregateParticipant,
			AggregateID:   rideID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.ParticipantChangedEvent{
				RideID: rideID,
				UserID: userID,
				Status: enums.ParticipantStatusPending,
			},
			Version: 1,
		})
	})
}

// Leave removes the user's roster row. Leaving a ride the user never joined
// succeeds without emitting an event.
func (s *service) Leave(ctx context.Context, userID, rideID uuid.UUID) error {
	if err := s.validatePair(userID, rideID); err != nil {
		return err
	}
	if err := s.ensureRide(ctx, rideID); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.DeleteTx(tx, rideID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "leave ride")
		}
		if affected == 0 {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventParticipantLeft,
			AggregateType: enums.AggregateParticipant,
			AggregateID:   rideID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.ParticipantChangedEvent{
				RideID: rideID,
				UserID: userID,
			},
			Version: 1,
		})
	})
}

// SetStatus updates the user's own attendance status.
func (s *service) SetStatus(ctx context.Context, userID, rideID uuid.UUID, status string) error {
	if err := s.validatePair(userID, rideID); err != nil {
		return err
	}
	parsed, err := enums.ParseParticipantStatus(status)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid participant status")
	}
	if err := s.ensureRide(ctx, rideID); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.UpdateStatusTx(tx, rideID, userID, parsed.String())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set participant status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "not a participant of this ride")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventParticipantStatusChanged,
			AggregateType: enums.AggregateParticipant,
			AggregateID:   rideID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.ParticipantChangedEvent{
				RideID: rideID,
				UserID: userID,
				Status: parsed,
			},
			Version: 1,
		})
	})
}

// IsParticipant reports whether the user has a roster row for the ride.
func (s *service) IsParticipant(ctx context.Context, userID, rideID uuid.UUID) (bool, error) {
	if err := s.validatePair(userID, rideID); err != nil {
		return false, err
	}
	_, err := s.repo.Find(ctx, rideID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participant")
	}
	return true, nil
}

func (s *service) validatePair(userID, rideID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if rideID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "ride id required")
	}
	return nil
}

func (s *service) ensureRide(ctx context.Context, rideID uuid.UUID) error {
	if _, err := s.rides.FindByID(ctx, rideID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ride")
	}
	return nil
}
