package rides

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
)

// CreateRideDTO captures the payload for scheduling a ride.
type CreateRideDTO struct {
	Title         string     `json:"title" validate:"required,min=3,max=120"`
	StartLocation string     `json:"startLocation" validate:"required,min=2,max=200"`
	RideTime      time.Time  `json:"rideTime" validate:"required"`
	DistanceKM    float64    `json:"distanceKm" validate:"required,gt=0,lte=1000"`
	Pace          string     `json:"pace" validate:"required,oneof=chill speed race"`
	BikeType      string     `json:"bikeType" validate:"required,oneof=road mtb"`
	Description   *string    `json:"description" validate:"omitempty,max=2000"`
	Latitude      *float64   `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64   `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	RadiusKM      *float64   `json:"radiusKm" validate:"omitempty,gt=0,lte=500"`
	GroupID       *uuid.UUID `json:"groupId"`
}

// ToModel converts the DTO into a persistable ride owned by creatorID.
func (d CreateRideDTO) ToModel(creatorID uuid.UUID) *models.Ride {
	pace, _ := enums.ParsePace(d.Pace)
	bikeType, _ := enums.ParseBikeType(d.BikeType)
	return &models.Ride{
		Title:         strings.TrimSpace(d.Title),
		StartLocation: strings.TrimSpace(d.StartLocation),
		RideTime:      d.RideTime.UTC(),
		DistanceKM:    d.DistanceKM,
		Pace:          pace,
		BikeType:      bikeType,
		Description:   d.Description,
		Latitude:      d.Latitude,
		Longitude:     d.Longitude,
		RadiusKM:      d.RadiusKM,
		GroupID:       d.GroupID,
		CreatedBy:     creatorID,
	}
}

// UpdateRideDTO holds the mutable ride fields. Nil pointers are left untouched.
type UpdateRideDTO struct {
	Title         *string    `json:"title" validate:"omitempty,min=3,max=120"`
	StartLocation *string    `json:"startLocation" validate:"omitempty,min=2,max=200"`
	RideTime      *time.Time `json:"rideTime"`
	DistanceKM    *float64   `json:"distanceKm" validate:"omitempty,gt=0,lte=1000"`
	Pace          *string    `json:"pace" validate:"omitempty,oneof=chill speed race"`
	BikeType      *string    `json:"bikeType" validate:"omitempty,oneof=road mtb"`
	Description   *string    `json:"description" validate:"omitempty,max=2000"`
	Latitude      *float64   `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64   `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	RadiusKM      *float64   `json:"radiusKm" validate:"omitempty,gt=0,lte=500"`
}

// ListParams configures ride listing filters and pagination.
type ListParams struct {
	Limit    int
	Cursor   string
	Pace     string
	BikeType string
	GroupID  *uuid.UUID
	From     *time.Time
}

// ParticipantView is the roster entry embedded in ride responses.
type ParticipantView struct {
	UserID   uuid.UUID               `json:"userId"`
	Status   enums.ParticipantStatus `json:"status"`
	JoinedAt time.Time               `json:"joinedAt"`
}

// RideResponse is the public shape of a ride with its roster.
type RideResponse struct {
	ID            uuid.UUID         `json:"id"`
	Title         string            `json:"title"`
	StartLocation string            `json:"startLocation"`
	RideTime      time.Time         `json:"rideTime"`
	DistanceKM    float64           `json:"distanceKm"`
	Pace          enums.Pace        `json:"pace"`
	BikeType      enums.BikeType    `json:"bikeType"`
	Description   *string           `json:"description,omitempty"`
	Latitude      *float64          `json:"latitude,omitempty"`
	Longitude     *float64          `json:"longitude,omitempty"`
	RadiusKM      *float64          `json:"radiusKm,omitempty"`
	GroupID       *uuid.UUID        `json:"groupId,omitempty"`
	CreatedBy     uuid.UUID         `json:"createdBy"`
	CreatedAt     time.Time         `json:"createdAt"`
	Participants  []ParticipantView `json:"participants"`
}

// ListResult wraps returned rides and the cursor for the next page.
type ListResult struct {
	Items  []RideResponse `json:"items"`
	Cursor string         `json:"cursor"`
}

// NewRideResponse maps the persistence model and its roster into the API shape.
func NewRideResponse(ride *models.Ride, participants []models.RideParticipant) *RideResponse {
	if ride == nil {
		return nil
	}
	roster := make([]ParticipantView, 0, len(participants))
	for _, p := range participants {
		roster = append(roster, ParticipantView{
			UserID:   p.UserID,
			Status:   p.Status,
			JoinedAt: p.CreatedAt,
		})
	}
	return &RideResponse{
		ID:            ride.ID,
		Title:         ride.Title,
		StartLocation: ride.StartLocation,
		RideTime:      ride.RideTime,
		DistanceKM:    ride.DistanceKM,
		Pace:          ride.Pace,
		BikeType:      ride.BikeType,
		Description:   ride.Description,
		Latitude:      ride.Latitude,
		Longitude:     ride.Longitude,
		RadiusKM:      ride.RadiusKM,
		GroupID:       ride.GroupID,
		CreatedBy:     ride.CreatedBy,
		CreatedAt:     ride.CreatedAt,
		Participants:  roster,
	}
}
