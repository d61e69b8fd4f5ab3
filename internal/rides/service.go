package rides

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
	"github.com/pelotonhq/peloton-backend/pkg/outbox"
	"github.com/pelotonhq/peloton-backend/pkg/outbox/payloads"
	"github.com/pelotonhq/peloton-backend/pkg/pagination"
)

// Service defines ride lifecycle operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, dto CreateRideDTO) (*RideResponse, error)
	Update(ctx context.Context, userID, rideID uuid.UUID, dto UpdateRideDTO) (*RideResponse, error)
	Delete(ctx context.Context, userID, rideID uuid.UUID) error
	Get(ctx context.Context, rideID uuid.UUID) (*RideResponse, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type repository interface {
	CreateTx(tx *gorm.DB, ride *models.Ride) error
	UpdateTx(tx *gorm.DB, id uuid.UUID, updates map[string]any) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	List(ctx context.Context, params listRidesParams) ([]models.Ride, *pagination.Cursor, error)
}

type participantStore interface {
	UpsertTx(tx *gorm.DB, row models.RideParticipant) error
	ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.RideParticipant, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type groupMembership interface {
	IsMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error)
}

type service struct {
	db           txRunner
	repo         repository
	participants participantStore
	groups       groupMembership
	events       eventEmitter
}

// NewService wires the rides service dependencies.
func NewService(db txRunner, repo repository, participants participantStore, groups groupMembership, events eventEmitter) (Service, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rides repository required")
	}
	if participants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "participants repository required")
	}
	if groups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "groups service required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	return &service{db: db, repo: repo, participants: participants, groups: groups, events: events}, nil
}

// Create inserts the ride and joins the creator as an accepted participant in
// the same transaction.
func (s *service) Create(ctx context.Context, userID uuid.UUID, dto CreateRideDTO) (*RideResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !dto.RideTime.After(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ride time must be in the future")
	}
	if dto.GroupID != nil {
		member, err := s.groups.IsMember(ctx, userID, *dto.GroupID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "join the group before scheduling a group ride")
		}
	}

	ride := dto.ToModel(userID)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, ride); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ride")
		}
		creator := models.RideParticipant{
			RideID: ride.ID,
			UserID: userID,
			Status: enums.ParticipantStatusAccepted,
		}
		if err := s.participants.UpsertTx(tx, creator); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "join creator")
		}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRideCreated,
			AggregateType: enums.AggregateRide,
			AggregateID:   ride.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data:          rideEventPayload(ride),
			Version:       1,
		}); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventParticipantJoined,
			AggregateType: enums.AggregateParticipant,
			AggregateID:   ride.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.ParticipantChangedEvent{
				RideID: ride.ID,
				UserID: userID,
				Status: enums.ParticipantStatusAccepted,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, ride.ID)
}

// Update applies a partial edit; only the creator may modify a ride.
func (s *service) Update(ctx context.Context, userID, rideID uuid.UUID, dto UpdateRideDTO) (*RideResponse, error) {
	ride, err := s.findRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.CreatedBy != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the ride creator can edit")
	}

	updates, err := buildRideUpdates(dto)
	if err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.UpdateTx(tx, rideID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ride")
			}
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRideUpdated,
				AggregateType: enums.AggregateRide,
				AggregateID:   rideID,
				Actor:         &outbox.ActorRef{UserID: userID},
				Data:          payloads.RideChangedEvent{RideID: rideID, CreatedBy: ride.CreatedBy},
				Version:       1,
			})
		})
		if err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, rideID)
}

// Delete removes the ride and its roster; only the creator may delete.
func (s *service) Delete(ctx context.Context, userID, rideID uuid.UUID) error {
	ride, err := s.findRide(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.CreatedBy != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the ride creator can delete")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.DeleteTx(tx, rideID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete ride")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRideDeleted,
			AggregateType: enums.AggregateRide,
			AggregateID:   rideID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data:          payloads.RideChangedEvent{RideID: rideID, CreatedBy: ride.CreatedBy},
			Version:       1,
		})
	})
}

func (s *service) Get(ctx context.Context, rideID uuid.UUID) (*RideResponse, error) {
	ride, err := s.findRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	roster, err := s.participants.ListByRide(ctx, rideID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load roster")
	}
	return NewRideResponse(ride, roster), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listRidesParams{
		Limit:    pagination.LimitWithBuffer(params.Limit),
		Pace:     params.Pace,
		BikeType: params.BikeType,
		GroupID:  params.GroupID,
		From:     params.From,
	}
	if params.Pace != "" {
		if _, err := enums.ParsePace(params.Pace); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pace filter")
		}
	}
	if params.BikeType != "" {
		if _, err := enums.ParseBikeType(params.BikeType); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid bike type filter")
		}
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rides")
	}

	items := make([]RideResponse, 0, len(rows))
	for i := range rows {
		roster, err := s.participants.ListByRide(ctx, rows[i].ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load roster")
		}
		items = append(items, *NewRideResponse(&rows[i], roster))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) findRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	if rideID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ride id required")
	}
	ride, err := s.repo.FindByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ride")
	}
	return ride, nil
}

func rideEventPayload(ride *models.Ride) payloads.RideChangedEvent {
	return payloads.RideChangedEvent{
		RideID:        ride.ID,
		Title:         ride.Title,
		StartLocation: ride.StartLocation,
		RideTime:      ride.RideTime,
		DistanceKM:    ride.DistanceKM,
		Pace:          ride.Pace,
		BikeType:      ride.BikeType,
		Latitude:      ride.Latitude,
		Longitude:     ride.Longitude,
		RadiusKM:      ride.RadiusKM,
		CreatedBy:     ride.CreatedBy,
	}
}

func buildRideUpdates(dto UpdateRideDTO) (map[string]any, error) {
	updates := map[string]any{}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.StartLocation != nil {
		updates["start_location"] = *dto.StartLocation
	}
	if dto.RideTime != nil {
		if !dto.RideTime.After(time.Now()) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ride time must be in the future")
		}
		updates["ride_time"] = dto.RideTime.UTC()
	}
	if dto.DistanceKM != nil {
		updates["distance_km"] = *dto.DistanceKM
	}
	if dto.Pace != nil {
		pace, err := enums.ParsePace(*dto.Pace)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pace")
		}
		updates["pace"] = pace
	}
	if dto.BikeType != nil {
		bikeType, err := enums.ParseBikeType(*dto.BikeType)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid bike type")
		}
		updates["bike_type"] = bikeType
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.Latitude != nil {
		updates["latitude"] = *dto.Latitude
	}
	if dto.Longitude != nil {
		updates["longitude"] = *dto.Longitude
	}
	if dto.RadiusKM != nil {
		updates["radius_km"] = *dto.RadiusKM
	}
	return updates, nil
}
