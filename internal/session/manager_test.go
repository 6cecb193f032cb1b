package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cutroom/internal/backend"
	"github.com/stwalsh4118/cutroom/internal/config"
	"github.com/stwalsh4118/cutroom/internal/db"
	"github.com/stwalsh4118/cutroom/internal/models"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

func testConfig() *config.Config {
	return &config.Config{
		Playback: config.PlaybackConfig{
			FPS:            100,
			OutputWidth:    8,
			OutputHeight:   6,
			EndEpsilon:     0.05,
			CommandTimeout: time.Second,
		},
		Viewport: config.ViewportConfig{Padding: 4},
		Zoom:     config.ZoomConfig{MinVisibleSeconds: 1, Step: 1.1},
		Backend: config.BackendConfig{
			Kind:                config.BackendSynthetic,
			BreakerThreshold:    3,
			BreakerResetTimeout: time.Minute,
		},
		Session: config.SessionConfig{
			IdleTimeout:     time.Minute,
			CleanupInterval: time.Hour,
		},
	}
}

func setupManager(t *testing.T) (*Manager, *db.Repositories) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	repos := db.NewRepositories(database)
	m := NewManager(repos, timeline.NewService(repos), testConfig())
	t.Cleanup(m.Stop)
	return m, repos
}

func createProject(t *testing.T, repos *db.Repositories, name string) *models.Project {
	project := models.NewProject(name, "/media/"+name+".mp4")
	project.SourceDuration = 60
	project.SourceWidth = 1920
	project.SourceHeight = 1080
	require.NoError(t, repos.Projects.Create(context.Background(), project))
	require.NoError(t, repos.Segments.Replace(context.Background(), project.ID, []*models.Segment{
		models.NewSegment(project.ID, 0, 0, 10, 1),
		models.NewSegment(project.ID, 1, 20, 30, 2),
	}))
	return project
}

func TestManager_OpenReturnsSameSession(t *testing.T) {
	m, repos := setupManager(t)
	project := createProject(t, repos, "demo")
	ctx := context.Background()

	s1, err := m.Open(ctx, project.ID)
	require.NoError(t, err)
	s2, err := m.Open(ctx, project.ID)
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Len(t, m.List(), 1)
	assert.Equal(t, 15.0, s1.View().TotalDuration)

	got, ok := m.Get(project.ID)
	assert.True(t, ok)
	assert.Same(t, s1, got)
}

func TestManager_OpenUnknownProject(t *testing.T) {
	m, _ := setupManager(t)

	_, err := m.Open(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestManager_CloseSavesPlaybackTime(t *testing.T) {
	m, repos := setupManager(t)
	project := createProject(t, repos, "resume")
	ctx := context.Background()

	s, err := m.Open(ctx, project.ID)
	require.NoError(t, err)
	s.Store().SetPlaybackTime(7.5)

	require.NoError(t, m.Close(ctx, project.ID))
	assert.ErrorIs(t, m.Close(ctx, project.ID), ErrSessionNotFound)

	stored, err := repos.Projects.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, stored.LastPlaybackTime, 1e-9)

	reopened, err := m.Open(ctx, project.ID)
	require.NoError(t, err)
	assert.NotSame(t, s, reopened)
	assert.Equal(t, 7.5, reopened.View().PlaybackTime)
}

func TestManager_ReloadTimeline(t *testing.T) {
	m, repos := setupManager(t)
	project := createProject(t, repos, "reload")
	ctx := context.Background()

	// no open session is not an error
	require.NoError(t, m.ReloadTimeline(ctx, project.ID))

	s, err := m.Open(ctx, project.ID)
	require.NoError(t, err)

	require.NoError(t, repos.Segments.Replace(ctx, project.ID, []*models.Segment{
		models.NewSegment(project.ID, 0, 0, 4, 1),
	}))
	require.NoError(t, m.ReloadTimeline(ctx, project.ID))

	v := s.View()
	assert.Equal(t, 4.0, v.TotalDuration)
	assert.Equal(t, 1, v.Segments)
}

func TestManager_CleanupClosesIdleSessions(t *testing.T) {
	m, repos := setupManager(t)
	idle := createProject(t, repos, "idle")
	watched := createProject(t, repos, "watched")
	ctx := context.Background()

	_, err := m.Open(ctx, idle.ID)
	require.NoError(t, err)
	ws, err := m.Open(ctx, watched.ID)
	require.NoError(t, err)
	ws.AddClient()

	closed := m.performCleanup(time.Now().Add(time.Hour))

	assert.Equal(t, 1, closed)
	_, ok := m.Get(idle.ID)
	assert.False(t, ok)
	_, ok = m.Get(watched.ID)
	assert.True(t, ok)
}

func TestManager_StartStop(t *testing.T) {
	m, repos := setupManager(t)
	project := createProject(t, repos, "shutdown")
	ctx := context.Background()

	require.NoError(t, m.Start())
	_, err := m.Open(ctx, project.ID)
	require.NoError(t, err)

	m.Stop()
	m.Stop()

	assert.Empty(t, m.List())
	_, err = m.Open(ctx, project.ID)
	assert.ErrorIs(t, err, ErrManagerStopped)
	assert.ErrorIs(t, m.Start(), ErrManagerStopped)
}

func TestManager_ConfiguredBackendKinds(t *testing.T) {
	m, repos := setupManager(t)
	project := createProject(t, repos, "kinds")

	_, ok := m.configuredBackend(project)(nil).(*backend.Synthetic)
	assert.True(t, ok)

	m.cfg.Backend.Kind = config.BackendFFmpeg
	m.cfg.Backend.FFmpegPath = "/usr/bin/ffmpeg"
	_, ok = m.configuredBackend(project)(nil).(*backend.FFmpegDecoder)
	assert.True(t, ok)
}
