package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
)

// Store fetches the full ride and roster datasets for a wholesale refresh.
// Implementations validate rows at the boundary so the engine never holds
// malformed state.
type Store interface {
	FetchRides(ctx context.Context) ([]Ride, error)
	FetchParticipants(ctx context.Context) ([]Participant, error)
}

type ridesSource interface {
	ListAll(ctx context.Context) ([]models.Ride, error)
}

type participantsSource interface {
	ListAll(ctx context.Context) ([]models.RideParticipant, error)
}

type dbStore struct {
	rides        ridesSource
	participants participantsSource
}

// NewStore builds the database-backed Store used in production.
func NewStore(rides ridesSource, participants participantsSource) (Store, error) {
	if rides == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rides repository required")
	}
	if participants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "participants repository required")
	}
	return &dbStore{rides: rides, participants: participants}, nil
}

func (s *dbStore) FetchRides(ctx context.Context) ([]Ride, error) {
	rows, err := s.rides.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch rides")
	}
	out := make([]Ride, 0, len(rows))
	for i := range rows {
		ride, err := projectRide(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, ride)
	}
	return out, nil
}

func (s *dbStore) FetchParticipants(ctx context.Context) ([]Participant, error) {
	rows, err := s.participants.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch participants")
	}
	out := make([]Participant, 0, len(rows))
	for i := range rows {
		participant, err := projectParticipant(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, participant)
	}
	return out, nil
}

func projectRide(row *models.Ride) (Ride, error) {
	if row.ID == uuid.Nil {
		return Ride{}, pkgerrors.New(pkgerrors.CodeSchema, "ride row missing id")
	}
	if row.Title == "" {
		return Ride{}, pkgerrors.New(pkgerrors.CodeSchema, fmt.Sprintf("ride %s missing title", row.ID))
	}
	if row.RideTime.IsZero() {
		return Ride{}, pkgerrors.New(pkgerrors.CodeSchema, fmt.Sprintf("ride %s missing start time", row.ID))
	}
	if !row.Pace.IsValid() {
		return Ride{}, pkgerrors.New(pkgerrors.CodeSchema, fmt.Sprintf("ride %s has invalid pace %q", row.ID, row.Pace))
	}
	if !row.BikeType.IsValid() {
		return Ride{}, pkgerrors.New(pkgerrors.CodeSchema, fmt.Sprintf("ride %s has invalid bike type %q", row.ID, row.BikeType))
	}
	if row.CreatedBy == uuid.Nil {
		return Ride{}, pkgerrors.New(pkgerrors.CodeSchema, fmt.Sprintf("ride %s missing creator", row.ID))
	}
	return Ride{
		ID:            row.ID,
		Title:         row.Title,
		StartLocation: row.StartLocation,
		RideTime:      row.RideTime,
		DistanceKM:    row.DistanceKM,
		Pace:          row.Pace,
		BikeType:      row.BikeType,
		Description:   row.Description,
		Latitude:      row.Latitude,
		Longitude:     row.Longitude,
		RadiusKM:      row.RadiusKM,
		GroupID:       row.GroupID,
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func projectParticipant(row *models.RideParticipant) (Participant, error) {
	if row.RideID == uuid.Nil || row.UserID == uuid.Nil {
		return Participant{}, pkgerrors.New(pkgerrors.CodeSchema, "participant row missing key")
	}
	if !row.Status.IsValid() {
		return Participant{}, pkgerrors.New(pkgerrors.CodeSchema, fmt.Sprintf("participant %s/%s has invalid status %q", row.RideID, row.UserID, row.Status))
	}
	return Participant{
		RideID:   row.RideID,
		UserID:   row.UserID,
		Status:   row.Status,
		JoinedAt: row.CreatedAt,
	}, nil
}
