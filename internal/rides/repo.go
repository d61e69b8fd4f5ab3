package rides

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
	"github.com/pelotonhq/peloton-backend/pkg/pagination"
)

// Repository exposes ride persistence operations. Writes run inside the
// caller's transaction so outbox rows commit atomically with the change.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a rides repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts a ride inside the transaction.
func (r *Repository) CreateTx(tx *gorm.DB, ride *models.Ride) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(ride).Error
}

// UpdateTx applies a partial update to the ride row inside the transaction.
func (r *Repository) UpdateTx(tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Ride{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteTx removes the ride; participants cascade at the schema level.
func (r *Repository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Where("id = ?", id).Delete(&models.Ride{}).Error
}

// FindByID loads a ride by UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	var ride models.Ride
	if err := r.db.WithContext(ctx).First(&ride, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ride, nil
}

type listRidesParams struct {
	Limit    int
	Cursor   *pagination.Cursor
	Pace     string
	BikeType string
	GroupID  *uuid.UUID
	From     *time.Time
}

// List returns rides ordered by ride_time ascending with keyset pagination.
func (r *Repository) List(ctx context.Context, params listRidesParams) ([]models.Ride, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Ride{})

	if params.Pace != "" {
		query = query.Where("pace = ?", params.Pace)
	}
	if params.BikeType != "" {
		query = query.Where("bike_type = ?", params.BikeType)
	}
	if params.GroupID != nil {
		query = query.Where("group_id = ?", *params.GroupID)
	}
	if params.From != nil {
		query = query.Where("ride_time >= ?", *params.From)
	}
	if params.Cursor != nil {
		query = query.Where(
			"(ride_time > ?) OR (ride_time = ? AND id > ?)",
			params.Cursor.Key, params.Cursor.Key, params.Cursor.ID,
		)
	}

	var rows []models.Ride
	err := query.
		Order("ride_time ASC").
		Order("id ASC").
		Limit(params.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	limit := params.Limit - 1
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		return rows, &pagination.Cursor{Key: last.RideTime, ID: last.ID}, nil
	}
	return rows, nil, nil
}

// ListAll returns every ride ordered by ride_time ascending.
func (r *Repository) ListAll(ctx context.Context) ([]models.Ride, error) {
	var rows []models.Ride
	err := r.db.WithContext(ctx).
		Order("ride_time ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListUpcomingBetween returns rides whose start time falls inside the window.
func (r *Repository) ListUpcomingBetween(ctx context.Context, from, to time.Time) ([]models.Ride, error) {
	var rows []models.Ride
	err := r.db.WithContext(ctx).
		Where("ride_time >= ? AND ride_time < ?", from, to).
		Order("ride_time ASC").
		Find(&rows).Error
	return rows, err
}
