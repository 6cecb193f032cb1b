// Package project manages editing projects and their segment lists.
package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stwalsh4118/cutroom/internal/db"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/media"
	"github.com/stwalsh4118/cutroom/internal/models"
)

// CreateInput describes a new project. Zero source dimensions or duration are
// filled in by probing the source file.
type CreateInput struct {
	Name           string
	SourcePath     string
	SourceWidth    int
	SourceHeight   int
	SourceDuration float64
}

// SegmentInput is one segment of a replacement segment list
type SegmentInput struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Timescale float64 `json:"timescale"`
}

// Service handles business logic for project operations
type Service struct {
	repos  *db.Repositories
	prober media.Prober
}

// NewService creates a new project service. prober may be nil, in which case
// projects must be created with complete source details.
func NewService(repos *db.Repositories, prober media.Prober) *Service {
	return &Service{repos: repos, prober: prober}
}

// Create validates and stores a new project
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("failed to create project: %w", ErrEmptyName)
	}
	if err := s.validateNameUniqueness(ctx, name); err != nil {
		logger.Log.Warn().
			Str("name", name).
			Msg("Project creation failed: duplicate name")
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	project := models.NewProject(name, in.SourcePath)
	project.SourceWidth = in.SourceWidth
	project.SourceHeight = in.SourceHeight
	project.SourceDuration = in.SourceDuration

	if project.SourceWidth <= 0 || project.SourceHeight <= 0 || project.SourceDuration <= 0 {
		if err := s.probe(ctx, project); err != nil {
			return nil, fmt.Errorf("failed to create project: %w", err)
		}
	}

	if err := s.repos.Projects.Create(ctx, project); err != nil {
		if db.IsDuplicate(err) {
			return nil, fmt.Errorf("failed to create project: %w", ErrDuplicateName)
		}
		logger.Log.Error().
			Err(err).
			Str("name", name).
			Msg("Failed to create project in database")
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	logger.Log.Info().
		Str("project_id", project.ID.String()).
		Str("name", project.Name).
		Float64("source_duration", project.SourceDuration).
		Msg("Project created successfully")

	return project, nil
}

// Get retrieves a project with its segments
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.repos.Projects.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrProjectNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("project_id", id.String()).
			Msg("Failed to get project by ID")
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	segments, err := s.repos.Segments.GetByProjectID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get segments: %w", err)
	}
	project.Segments = segments

	return project, nil
}

// List retrieves all projects without their segments
func (s *Service) List(ctx context.Context) ([]*models.Project, error) {
	projects, err := s.repos.Projects.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list projects")
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	logger.Log.Debug().
		Int("count", len(projects)).
		Msg("Listed projects")

	return projects, nil
}

// Delete removes a project; its segments are removed by cascade
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.Projects.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrProjectNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("project_id", id.String()).
			Msg("Failed to delete project from database")
		return fmt.Errorf("failed to delete project: %w", err)
	}

	logger.Log.Info().
		Str("project_id", id.String()).
		Msg("Project deleted successfully")

	return nil
}

// ReplaceSegments validates and atomically replaces a project's segment list
func (s *Service) ReplaceSegments(ctx context.Context, id uuid.UUID, inputs []SegmentInput) ([]*models.Segment, error) {
	project, err := s.repos.Projects.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	for i, in := range inputs {
		if err := validateSegment(in, project.SourceDuration); err != nil {
			logger.Log.Warn().
				Str("project_id", id.String()).
				Int("position", i).
				Err(err).
				Msg("Segment replacement rejected")
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
	}

	segments := lo.Map(inputs, func(in SegmentInput, i int) *models.Segment {
		return models.NewSegment(id, i, in.Start, in.End, in.Timescale)
	})

	err = s.repos.InTransaction(ctx, func(tx *db.Repositories) error {
		if err := tx.Segments.Replace(ctx, id, segments); err != nil {
			return err
		}
		return tx.Projects.Update(ctx, project)
	})
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("project_id", id.String()).
			Msg("Failed to replace segments")
		return nil, fmt.Errorf("failed to replace segments: %w", err)
	}

	logger.Log.Info().
		Str("project_id", id.String()).
		Int("segments", len(segments)).
		Msg("Segments replaced")

	return segments, nil
}

func validateSegment(in SegmentInput, sourceDuration float64) error {
	switch {
	case in.Start < 0:
		return fmt.Errorf("%w: start %.3f is negative", ErrInvalidSegment, in.Start)
	case in.End <= in.Start:
		return fmt.Errorf("%w: end %.3f must be after start %.3f", ErrInvalidSegment, in.End, in.Start)
	case in.Timescale <= 0:
		return fmt.Errorf("%w: timescale %.3f must be positive", ErrInvalidSegment, in.Timescale)
	case sourceDuration > 0 && in.End > sourceDuration:
		return fmt.Errorf("%w: end %.3f is past the source duration %.3f", ErrInvalidSegment, in.End, sourceDuration)
	}
	return nil
}

// probe fills in source details from the media file
func (s *Service) probe(ctx context.Context, project *models.Project) error {
	if s.prober == nil {
		return ErrProbeUnavailable
	}
	if err := media.ValidateSource(project.SourcePath); err != nil {
		return err
	}

	info, err := s.prober.Probe(ctx, project.SourcePath)
	if err != nil {
		return err
	}

	if project.SourceWidth <= 0 {
		project.SourceWidth = info.Width
	}
	if project.SourceHeight <= 0 {
		project.SourceHeight = info.Height
	}
	if project.SourceDuration <= 0 {
		project.SourceDuration = info.Duration
	}
	return nil
}

// validateNameUniqueness checks if a project name is unique (case-insensitive)
func (s *Service) validateNameUniqueness(ctx context.Context, name string) error {
	projects, err := s.repos.Projects.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate name uniqueness: %w", err)
	}

	if lo.ContainsBy(projects, func(p *models.Project) bool {
		return strings.EqualFold(strings.TrimSpace(p.Name), name)
	}) {
		return ErrDuplicateName
	}
	return nil
}
