package models

import (
	"time"

	"github.com/google/uuid"
)

// Segment is a slice of a project's source media placed on the output timeline.
// Start and End are source-media seconds; Timescale divides the slice's duration.
type Segment struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	ProjectID uuid.UUID `json:"project_id" gorm:"type:text;not null;column:project_id" validate:"required"`
	Position  int       `json:"position" gorm:"type:integer;not null;column:position" validate:"gte=0"`
	Start     float64   `json:"start" gorm:"type:real;not null;column:start"`
	End       float64   `json:"end" gorm:"type:real;not null;column:end"`
	Timescale float64   `json:"timescale" gorm:"type:real;not null;default:1;column:timescale"`
	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewSegment creates a new Segment with generated UUID and timestamp
func NewSegment(projectID uuid.UUID, position int, start, end, timescale float64) *Segment {
	return &Segment{
		ID:        uuid.New(),
		ProjectID: projectID,
		Position:  position,
		Start:     start,
		End:       end,
		Timescale: timescale,
		CreatedAt: time.Now().UTC(),
	}
}
