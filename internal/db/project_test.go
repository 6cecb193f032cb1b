package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cutroom/internal/models"
	"gorm.io/gorm"
)

// setupTestDB creates a migrated database in a temp dir
func setupTestDB(t *testing.T) *DB {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, RunMigrations(sqlDB, "file://../../migrations"))

	return database
}

func TestProjectRepository_CRUD(t *testing.T) {
	repos := NewRepositories(setupTestDB(t))
	ctx := context.Background()

	project := models.NewProject("Demo", "/media/demo.mp4")
	project.SourceDuration = 42.5
	require.NoError(t, repos.Projects.Create(ctx, project))

	got, err := repos.Projects.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Demo", got.Name)
	assert.InDelta(t, 42.5, got.SourceDuration, 1e-9)

	got.Name = "Renamed"
	require.NoError(t, repos.Projects.Update(ctx, got))

	list, err := repos.Projects.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Name)

	require.NoError(t, repos.Projects.SavePlaybackTime(ctx, project.ID, 3.25))
	got, err = repos.Projects.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.25, got.LastPlaybackTime, 1e-9)

	require.NoError(t, repos.Projects.Delete(ctx, project.ID))
	_, err = repos.Projects.GetByID(ctx, project.ID)
	assert.True(t, IsNotFound(err))
}

func TestProjectRepository_DuplicateName(t *testing.T) {
	repos := NewRepositories(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repos.Projects.Create(ctx, models.NewProject("Same", "/a.mp4")))
	err := repos.Projects.Create(ctx, models.NewProject("Same", "/b.mp4"))
	assert.True(t, IsDuplicate(err))
}

func TestProjectRepository_MissingRows(t *testing.T) {
	repos := NewRepositories(setupTestDB(t))
	ctx := context.Background()

	assert.ErrorIs(t, repos.Projects.Delete(ctx, uuid.New()), ErrNotFound)
	assert.ErrorIs(t, repos.Projects.SavePlaybackTime(ctx, uuid.New(), 1), ErrNotFound)
	assert.ErrorIs(t, repos.Projects.Update(ctx, models.NewProject("x", "/x.mp4")), ErrNotFound)
}

func TestSegmentRepository_Replace(t *testing.T) {
	repos := NewRepositories(setupTestDB(t))
	ctx := context.Background()

	project := models.NewProject("Cuts", "/media/cuts.mp4")
	require.NoError(t, repos.Projects.Create(ctx, project))

	first := []*models.Segment{
		models.NewSegment(project.ID, 0, 0, 10, 1),
		models.NewSegment(project.ID, 0, 20, 30, 2),
	}
	require.NoError(t, repos.Segments.Replace(ctx, project.ID, first))

	segs, err := repos.Segments.GetByProjectID(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, 0, segs[0].Position)
	assert.Equal(t, 1, segs[1].Position)
	assert.InDelta(t, 2.0, segs[1].Timescale, 1e-9)

	second := []*models.Segment{models.NewSegment(project.ID, 0, 5, 6, 1)}
	require.NoError(t, repos.Segments.Replace(ctx, project.ID, second))

	segs, err = repos.Segments.GetByProjectID(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.InDelta(t, 5.0, segs[0].Start, 1e-9)
}

func TestSegmentRepository_ReplaceRollsBackOnInvalidRow(t *testing.T) {
	repos := NewRepositories(setupTestDB(t))
	ctx := context.Background()

	project := models.NewProject("Rollback", "/media/r.mp4")
	require.NoError(t, repos.Projects.Create(ctx, project))
	require.NoError(t, repos.Segments.Replace(ctx, project.ID, []*models.Segment{
		models.NewSegment(project.ID, 0, 0, 4, 1),
	}))

	err := repos.Segments.Replace(ctx, project.ID, []*models.Segment{
		models.NewSegment(project.ID, 0, 0, 2, 1),
		models.NewSegment(project.ID, 0, 9, 3, 1), // end before start
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraint)

	segs, err := repos.Segments.GetByProjectID(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.InDelta(t, 4.0, segs[0].End, 1e-9)
}

func TestSegmentsCascadeWithProject(t *testing.T) {
	repos := NewRepositories(setupTestDB(t))
	ctx := context.Background()

	project := models.NewProject("Cascade", "/media/c.mp4")
	require.NoError(t, repos.Projects.Create(ctx, project))
	require.NoError(t, repos.Segments.Replace(ctx, project.ID, []*models.Segment{
		models.NewSegment(project.ID, 0, 0, 1, 1),
	}))

	require.NoError(t, repos.Projects.Delete(ctx, project.ID))

	segs, err := repos.Segments.GetByProjectID(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestInTransaction_RollsBackEveryRepository(t *testing.T) {
	repos := NewRepositories(setupTestDB(t))
	ctx := context.Background()

	project := models.NewProject("Atomic", "/media/a.mp4")
	require.NoError(t, repos.Projects.Create(ctx, project))

	err := repos.InTransaction(ctx, func(tx *Repositories) error {
		if err := tx.Segments.Replace(ctx, project.ID, []*models.Segment{
			models.NewSegment(project.ID, 0, 0, 5, 1),
		}); err != nil {
			return err
		}
		project.Name = "Renamed"
		if err := tx.Projects.Update(ctx, project); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	segs, err := repos.Segments.GetByProjectID(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, segs)

	stored, err := repos.Projects.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Atomic", stored.Name)
}

func TestMapGormError(t *testing.T) {
	assert.Nil(t, MapGormError(nil))
	assert.ErrorIs(t, MapGormError(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, MapGormError(assert.AnError), assert.AnError)

	err := MapGormError(errors.New("UNIQUE constraint failed: projects.name"))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "projects.name")

	assert.ErrorIs(t, MapGormError(errors.New("FOREIGN KEY constraint failed")), ErrForeignKey)
	assert.ErrorIs(t, MapGormError(errors.New("CHECK constraint failed: segment_range")), ErrConstraint)
}
