package participants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
)

// Repository exposes roster persistence operations keyed by (ride_id, user_id).
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a participants repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertTx inserts the participant row or refreshes its status on conflict.
func (r *Repository) UpsertTx(tx *gorm.DB, row models.RideParticipant) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ride_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&row).Error
}

// UpdateStatusTx changes the status of an existing row. Returns the number of
// rows touched so callers can distinguish missing membership.
func (r *Repository) UpdateStatusTx(tx *gorm.DB, rideID, userID uuid.UUID, status string) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	result := tx.Model(&models.RideParticipant{}).
		Where("ride_id = ? AND user_id = ?", rideID, userID).
		Update("status", status)
	return result.RowsAffected, result.Error
}

// DeleteTx removes the participant row. Missing rows are not an error.
func (r *Repository) DeleteTx(tx *gorm.DB, rideID, userID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	result := tx.Where("ride_id = ? AND user_id = ?", rideID, userID).
		Delete(&models.RideParticipant{})
	return result.RowsAffected, result.Error
}

// Find loads the participant row for the (ride, user) pair.
func (r *Repository) Find(ctx context.Context, rideID, userID uuid.UUID) (*models.RideParticipant, error) {
	var row models.RideParticipant
	err := r.db.WithContext(ctx).
		Where("ride_id = ? AND user_id = ?", rideID, userID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByRide returns the roster ordered by join time.
func (r *Repository) ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.RideParticipant, error) {
	var rows []models.RideParticipant
	err := r.db.WithContext(ctx).
		Where("ride_id = ?", rideID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListAll returns every participant row across all rides.
func (r *Repository) ListAll(ctx context.Context) ([]models.RideParticipant, error) {
	var rows []models.RideParticipant
	err := r.db.WithContext(ctx).
		Order("ride_id ASC").
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
