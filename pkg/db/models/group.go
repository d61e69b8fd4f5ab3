package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is an optional categorical tag for rides and users.
type Group struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"type:text;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// UserGroup records group membership. No ordering invariant applies.
type UserGroup struct {
	UserID    uuid.UUID `gorm:"type:uuid;column:user_id;primaryKey"`
	GroupID   uuid.UUID `gorm:"type:uuid;column:group_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName keeps the join table singular-free like the rest of the schema.
func (UserGroup) TableName() string {
	return "user_groups"
}
