package timeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cutroom/internal/db"
	"github.com/stwalsh4118/cutroom/internal/logger"
)

// ErrProjectNotFound is returned when loading the timeline of an unknown project
var ErrProjectNotFound = errors.New("project not found")

// Timeline is a project's ordered segment list with its derived output duration
type Timeline struct {
	ProjectID     uuid.UUID `json:"project_id"`
	Segments      []Segment `json:"segments"`
	TotalDuration float64   `json:"total_duration"`
}

// Service loads project timelines from the database
type Service struct {
	repos *db.Repositories
}

// NewService creates a new timeline service instance
func NewService(repos *db.Repositories) *Service {
	return &Service{repos: repos}
}

// Load fetches a project's segments and derives its timeline.
// A project without segments falls back to one full-length segment at normal speed
// when its source duration is known.
func (s *Service) Load(ctx context.Context, projectID uuid.UUID) (*Timeline, error) {
	project, err := s.repos.Projects.GetByID(ctx, projectID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrProjectNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("project_id", projectID.String()).
			Msg("Failed to fetch project from database")
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	rows, err := s.repos.Segments.GetByProjectID(ctx, projectID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("project_id", projectID.String()).
			Msg("Failed to fetch segments from database")
		return nil, fmt.Errorf("failed to get segments: %w", err)
	}

	segments := FromModels(rows)
	if len(segments) == 0 && project.SourceDuration > 0 {
		segments = []Segment{{Start: 0, End: project.SourceDuration, Timescale: 1}}
	}

	tl := &Timeline{
		ProjectID:     projectID,
		Segments:      segments,
		TotalDuration: TotalDuration(segments),
	}

	logger.Log.Debug().
		Str("project_id", projectID.String()).
		Int("segments", len(segments)).
		Float64("total_duration", tl.TotalDuration).
		Msg("Timeline loaded")

	return tl, nil
}
