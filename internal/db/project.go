// Package db provides database connection management and repository interfaces.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cutroom/internal/models"
)

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project into the database
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	result := r.db.WithContext(ctx).Create(project)
	if result.Error != nil {
		return fmt.Errorf("failed to create project: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a project by its UUID
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&project)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &project, nil
}

// List retrieves all projects ordered by creation date (newest first)
func (r *ProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	result := r.db.WithContext(ctx).Order("created_at DESC").Find(&projects)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list projects: %w", MapGormError(result.Error))
	}
	return projects, nil
}

// Update updates an existing project's editable fields
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()

	// Use Select to explicitly update all fields including zero values
	result := r.db.WithContext(ctx).
		Where("id = ?", project.ID.String()).
		Select("name", "source_path", "source_width", "source_height", "source_duration", "updated_at").
		Updates(project)
	if result.Error != nil {
		return fmt.Errorf("failed to update project: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SavePlaybackTime records where the playhead was left for a project
func (r *ProjectRepository) SavePlaybackTime(ctx context.Context, id uuid.UUID, seconds float64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{
			"last_playback_time": seconds,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save playback time: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a project by its UUID (cascade delete to segments)
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Project{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete project: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
