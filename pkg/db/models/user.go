package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User represents the canonical identity entity.
type User struct {
	ID                    uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                 string           `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash          string           `gorm:"column:password_hash;not null"`
	FullName              string           `gorm:"column:full_name;not null"`
	AvatarURL             *string          `gorm:"column:avatar_url"`
	StravaURL             *string          `gorm:"column:strava_url"`
	NotificationsEnabled  bool             `gorm:"column:notifications_enabled;not null;default:true"`
	NotificationRadiusKM  float64          `gorm:"column:notification_radius_km;not null;default:25"`
	NotificationBikeTypes pq.StringArray   `gorm:"type:text[];column:notification_bike_types;not null;default:ARRAY[]::text[]"`
	Latitude              *float64         `gorm:"column:latitude"`
	Longitude             *float64         `gorm:"column:longitude"`
	PushSubscription      *json.RawMessage `gorm:"type:jsonb;column:push_subscription"`
	LastLoginAt           *time.Time       `gorm:"column:last_login_at"`
	CreatedAt             time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
