package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cutroom/internal/models"
	"gorm.io/gorm"
)

// SegmentRepository handles database operations for timeline segments
type SegmentRepository struct {
	db *DB
}

// NewSegmentRepository creates a new segment repository
func NewSegmentRepository(db *DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// GetByProjectID retrieves all segments for a project, ordered by position
func (r *SegmentRepository) GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]*models.Segment, error) {
	var segments []*models.Segment
	result := r.db.WithContext(ctx).
		Where("project_id = ?", projectID.String()).
		Order("position ASC").
		Find(&segments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get segments by project: %w", MapGormError(result.Error))
	}
	return segments, nil
}

// Replace swaps a project's whole segment list in one transaction.
// Positions are rewritten to match the slice order.
func (r *SegmentRepository) Replace(ctx context.Context, projectID uuid.UUID, segments []*models.Segment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID.String()).Delete(&models.Segment{}).Error; err != nil {
			return fmt.Errorf("failed to clear segments: %w", MapGormError(err))
		}

		for i, seg := range segments {
			seg.ProjectID = projectID
			seg.Position = i
			if err := tx.Create(seg).Error; err != nil {
				return fmt.Errorf("failed to insert segment %d: %w", i, MapGormError(err))
			}
		}
		return nil
	})
}

// DeleteByProjectID deletes all segments for a project
func (r *SegmentRepository) DeleteByProjectID(ctx context.Context, projectID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("project_id = ?", projectID.String()).Delete(&models.Segment{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete segments by project: %w", MapGormError(result.Error))
	}
	return nil
}
