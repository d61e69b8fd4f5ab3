package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/enums"
)

// RideChangedEvent is emitted for ride create/update/delete.
type RideChangedEvent struct {
	RideID        uuid.UUID      `json:"rideId"`
	Title         string         `json:"title,omitempty"`
	StartLocation string         `json:"startLocation,omitempty"`
	RideTime      time.Time      `json:"rideTime,omitzero"`
	DistanceKM    float64        `json:"distanceKm,omitempty"`
	Pace          enums.Pace     `json:"pace,omitempty"`
	BikeType      enums.BikeType `json:"bikeType,omitempty"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	RadiusKM      *float64       `json:"radiusKm,omitempty"`
	CreatedBy     uuid.UUID      `json:"createdBy"`
}

// ParticipantChangedEvent is emitted for roster join/status/leave.
type ParticipantChangedEvent struct {
	RideID uuid.UUID               `json:"rideId"`
	UserID uuid.UUID               `json:"userId"`
	Status enums.ParticipantStatus `json:"status,omitempty"`
}
