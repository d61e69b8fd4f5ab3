package groups

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/pelotonhq/peloton-backend/pkg/db"
	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
)

// Service defines group listing and membership operations.
type Service interface {
	Create(ctx context.Context, dto CreateGroupDTO) (*GroupResponse, error)
	List(ctx context.Context) ([]GroupResponse, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]GroupResponse, error)
	Join(ctx context.Context, userID, groupID uuid.UUID) error
	Leave(ctx context.Context, userID, groupID uuid.UUID) error
	IsMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error)
}

type repository interface {
	Create(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	AddMember(ctx context.Context, userID, groupID uuid.UUID) error
	RemoveMember(ctx context.Context, userID, groupID uuid.UUID) error
	IsMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error)
}

type service struct {
	repo repository
}

// NewService wires the groups service dependencies.
func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "groups repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, dto CreateGroupDTO) (*GroupResponse, error) {
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group name required")
	}
	group := &models.Group{Name: name}
	if err := s.repo.Create(ctx, group); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "group name already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create group")
	}
	return NewGroupResponse(group), nil
}

func (s *service) List(ctx context.Context) ([]GroupResponse, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list groups")
	}
	return NewGroupResponses(rows), nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]GroupResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user groups")
	}
	return NewGroupResponses(rows), nil
}

func (s *service) Join(ctx context.Context, userID, groupID uuid.UUID) error {
	if err := s.ensureGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.repo.AddMember(ctx, userID, groupID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "join group")
	}
	return nil
}

func (s *service) Leave(ctx context.Context, userID, groupID uuid.UUID) error {
	if err := s.ensureGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, userID, groupID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "leave group")
	}
	return nil
}

func (s *service) IsMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	member, err := s.repo.IsMember(ctx, userID, groupID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	return member, nil
}

func (s *service) ensureGroup(ctx context.Context, groupID uuid.UUID) error {
	if groupID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	if _, err := s.repo.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	return nil
}
