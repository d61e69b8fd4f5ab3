package users

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
)

// Service defines profile and preference operations for the current user.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, dto UpdateProfileDTO) (*ProfileResponse, error)
	UpdateNotificationPrefs(ctx context.Context, userID uuid.UUID, dto UpdateNotificationPrefsDTO) (*ProfileResponse, error)
	SavePushSubscription(ctx context.Context, userID uuid.UUID, dto SavePushSubscriptionDTO) error
}

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateColumns(ctx context.Context, id uuid.UUID, updates map[string]any) error
	SavePushSubscription(ctx context.Context, id uuid.UUID, subscription json.RawMessage) error
}

type service struct {
	repo repository
}

// NewService wires the users service dependencies.
func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewProfileResponse(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, dto UpdateProfileDTO) (*ProfileResponse, error) {
	updates := map[string]any{}
	if dto.FullName != nil {
		updates["full_name"] = *dto.FullName
	}
	if dto.AvatarURL != nil {
		updates["avatar_url"] = *dto.AvatarURL
	}
	if dto.StravaURL != nil {
		updates["strava_url"] = *dto.StravaURL
	}
	if dto.Latitude != nil {
		updates["latitude"] = *dto.Latitude
	}
	if dto.Longitude != nil {
		updates["longitude"] = *dto.Longitude
	}

	return s.applyUpdates(ctx, userID, updates)
}

func (s *service) UpdateNotificationPrefs(ctx context.Context, userID uuid.UUID, dto UpdateNotificationPrefsDTO) (*ProfileResponse, error) {
	updates := map[string]any{}
	if dto.NotificationsEnabled != nil {
		updates["notifications_enabled"] = *dto.NotificationsEnabled
	}
	if dto.NotificationRadiusKM != nil {
		updates["notification_radius_km"] = *dto.NotificationRadiusKM
	}
	if dto.NotificationBikeTypes != nil {
		normalized, ok := normalizeBikeTypes(dto.NotificationBikeTypes)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid bike type")
		}
		updates["notification_bike_types"] = normalized
	}

	return s.applyUpdates(ctx, userID, updates)
}

func (s *service) SavePushSubscription(ctx context.Context, userID uuid.UUID, dto SavePushSubscriptionDTO) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(dto.Subscription) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload required")
	}
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.SavePushSubscription(ctx, userID, dto.Subscription); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save push subscription")
	}
	return nil
}

func (s *service) applyUpdates(ctx context.Context, userID uuid.UUID, updates map[string]any) (*ProfileResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateColumns(ctx, userID, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
		}
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewProfileResponse(user), nil
}

func (s *service) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}
