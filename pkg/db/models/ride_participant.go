package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/enums"
)

// RideParticipant is the join row linking a user to a ride. At most one row
// exists per (ride, user) pair; joins upsert on the composite key.
type RideParticipant struct {
	RideID    uuid.UUID               `gorm:"type:uuid;column:ride_id;primaryKey"`
	UserID    uuid.UUID               `gorm:"type:uuid;column:user_id;primaryKey"`
	Status    enums.ParticipantStatus `gorm:"type:participant_status_enum;not null;default:'pending'"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
