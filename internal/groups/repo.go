package groups

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
)

// Repository exposes group and membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a groups repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new group.
func (r *Repository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// FindByID loads a group by UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// List returns all groups ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Group, error) {
	var rows []models.Group
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// ListForUser returns the groups the user belongs to.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var rows []models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN user_groups ON user_groups.group_id = groups.id").
		Where("user_groups.user_id = ?", userID).
		Order("groups.name ASC").
		Find(&rows).Error
	return rows, err
}

// AddMember records group membership, ignoring duplicate joins.
func (r *Repository) AddMember(ctx context.Context, userID, groupID uuid.UUID) error {
	row := models.UserGroup{UserID: userID, GroupID: groupID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// RemoveMember deletes the membership row. Missing rows are not an error.
func (r *Repository) RemoveMember(ctx context.Context, userID, groupID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Delete(&models.UserGroup{}).Error
}

// IsMember reports whether the user belongs to the group.
func (r *Repository) IsMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserGroup{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Count(&count).Error
	return count > 0, err
}
