package users

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
)

// CreateUserDTO captures the fields required to register a user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FullName     string
}

// ToModel converts the DTO into a persistable user model.
func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:        strings.ToLower(strings.TrimSpace(d.Email)),
		PasswordHash: d.PasswordHash,
		FullName:     strings.TrimSpace(d.FullName),
	}
}

// UpdateProfileDTO holds the mutable profile fields. Nil pointers are left untouched.
type UpdateProfileDTO struct {
	FullName  *string `json:"fullName" validate:"omitempty,min=1,max=120"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url"`
	StravaURL *string `json:"stravaUrl" validate:"omitempty,url"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// UpdateNotificationPrefsDTO holds the notification preference fields.
type UpdateNotificationPrefsDTO struct {
	NotificationsEnabled  *bool    `json:"notificationsEnabled"`
	NotificationRadiusKM  *float64 `json:"notificationRadiusKm" validate:"omitempty,gt=0,lte=500"`
	NotificationBikeTypes []string `json:"notificationBikeTypes" validate:"omitempty,dive,oneof=road mtb"`
}

// SavePushSubscriptionDTO wraps the opaque browser push subscription blob.
type SavePushSubscriptionDTO struct {
	Subscription json.RawMessage `json:"subscription" validate:"required"`
}

// ProfileResponse is the public shape of a user profile.
type ProfileResponse struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullName"`
	AvatarURL             *string    `json:"avatarUrl,omitempty"`
	StravaURL             *string    `json:"stravaUrl,omitempty"`
	NotificationsEnabled  bool       `json:"notificationsEnabled"`
	NotificationRadiusKM  float64    `json:"notificationRadiusKm"`
	NotificationBikeTypes []string   `json:"notificationBikeTypes"`
	Latitude              *float64   `json:"latitude,omitempty"`
	Longitude             *float64   `json:"longitude,omitempty"`
	LastLoginAt           *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// NewProfileResponse maps the persistence model into the API shape.
func NewProfileResponse(user *models.User) *ProfileResponse {
	if user == nil {
		return nil
	}
	return &ProfileResponse{
		ID:                    user.ID,
		Email:                 user.Email,
		FullName:              user.FullName,
		AvatarURL:             user.AvatarURL,
		StravaURL:             user.StravaURL,
		NotificationsEnabled:  user.NotificationsEnabled,
		NotificationRadiusKM:  user.NotificationRadiusKM,
		NotificationBikeTypes: append([]string{}, user.NotificationBikeTypes...),
		Latitude:              user.Latitude,
		Longitude:             user.Longitude,
		LastLoginAt:           user.LastLoginAt,
		CreatedAt:             user.CreatedAt,
	}
}

func normalizeBikeTypes(values []string) (pq.StringArray, bool) {
	out := make(pq.StringArray, 0, len(values))
	for _, value := range values {
		bikeType, err := enums.ParseBikeType(value)
		if err != nil {
			return nil, false
		}
		out = append(out, bikeType.String())
	}
	return out, true
}
