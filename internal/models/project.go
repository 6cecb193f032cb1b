package models

import (
	"time"

	"github.com/google/uuid"
)

// Project represents an editing project backed by a single source recording
type Project struct {
	ID             uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name           string    `json:"name" gorm:"type:text;not null;uniqueIndex;column:name" validate:"required,min=1,max=255"`
	SourcePath     string    `json:"source_path" gorm:"type:text;not null;column:source_path" validate:"required"`
	SourceWidth    int       `json:"source_width" gorm:"type:integer;not null;default:0;column:source_width"`
	SourceHeight   int       `json:"source_height" gorm:"type:integer;not null;default:0;column:source_height"`
	SourceDuration float64   `json:"source_duration" gorm:"type:real;not null;default:0;column:source_duration"`
	// LastPlaybackTime is where the playhead was when the project's session last closed
	LastPlaybackTime float64   `json:"last_playback_time" gorm:"type:real;not null;default:0;column:last_playback_time"`
	CreatedAt        time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`

	// Populated by joins, not stored in database
	Segments []*Segment `json:"segments,omitempty" gorm:"-"`
}

// NewProject creates a new Project with generated UUID and timestamps
func NewProject(name, sourcePath string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:         uuid.New(),
		Name:       name,
		SourcePath: sourcePath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
