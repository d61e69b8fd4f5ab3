package roster

import (
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/enums"
)

// Ride is the validated projection of a ride row held by the engine.
type Ride struct {
	ID            uuid.UUID      `json:"id"`
	Title         string         `json:"title"`
	StartLocation string         `json:"startLocation"`
	RideTime      time.Time      `json:"rideTime"`
	DistanceKM    float64        `json:"distanceKm"`
	Pace          enums.Pace     `json:"pace"`
	BikeType      enums.BikeType `json:"bikeType"`
	Description   *string        `json:"description,omitempty"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	RadiusKM      *float64       `json:"radiusKm,omitempty"`
	GroupID       *uuid.UUID     `json:"groupId,omitempty"`
	CreatedBy     uuid.UUID      `json:"createdBy"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Participant is the validated projection of a roster row.
type Participant struct {
	RideID   uuid.UUID               `json:"rideId"`
	UserID   uuid.UUID               `json:"userId"`
	Status   enums.ParticipantStatus `json:"status"`
	JoinedAt time.Time               `json:"joinedAt"`
}

// Snapshot is a point-in-time copy of the engine state. Rides are ordered by
// start time ascending; participants are grouped per ride in join order.
type Snapshot struct {
	Rides        []Ride                      `json:"rides"`
	Participants map[uuid.UUID][]Participant `json:"participants"`
	SyncedAt     time.Time                   `json:"syncedAt"`
}
