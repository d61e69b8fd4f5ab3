package groups

import (
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/pkg/db/models"
)

// CreateGroupDTO captures the payload for creating a group.
type CreateGroupDTO struct {
	Name string `json:"name" validate:"required,min=2,max=80"`
}

// GroupResponse is the public shape of a group.
type GroupResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewGroupResponse maps the persistence model into the API shape.
func NewGroupResponse(group *models.Group) *GroupResponse {
	if group == nil {
		return nil
	}
	return &GroupResponse{
		ID:        group.ID,
		Name:      group.Name,
		CreatedAt: group.CreatedAt,
	}
}

// NewGroupResponses maps a slice of groups.
func NewGroupResponses(rows []models.Group) []GroupResponse {
	out := make([]GroupResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *NewGroupResponse(&rows[i]))
	}
	return out
}
