package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/enums"
)

// Ride is a scheduled group cycling event owned by its creator.
type Ride struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string         `gorm:"type:text;not null"`
	StartLocation string         `gorm:"column:start_location;type:text;not null"`
	RideTime      time.Time      `gorm:"column:ride_time;type:timestamptz;not null"`
	DistanceKM    float64        `gorm:"column:distance_km;not null"`
	Pace          enums.Pace     `gorm:"type:pace_enum;not null"`
	BikeType      enums.BikeType `gorm:"type:bike_type_enum;not null"`
	Description   *string        `gorm:"type:text"`
	Latitude      *float64       `gorm:"column:latitude"`
	Longitude     *float64       `gorm:"column:longitude"`
	RadiusKM      *float64       `gorm:"column:radius_km"`
	GroupID       *uuid.UUID     `gorm:"type:uuid;column:group_id"`
	CreatedBy     uuid.UUID      `gorm:"type:uuid;column:created_by;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
