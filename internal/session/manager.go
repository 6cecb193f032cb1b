package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stwalsh4118/cutroom/internal/backend"
	"github.com/stwalsh4118/cutroom/internal/config"
	"github.com/stwalsh4118/cutroom/internal/db"
	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/models"
	"github.com/stwalsh4118/cutroom/internal/playback"
	"github.com/stwalsh4118/cutroom/internal/timeline"
	"github.com/stwalsh4118/cutroom/internal/zoom"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrManagerStopped  = errors.New("session manager has been stopped")
)

// Manager owns the open editor sessions, one per project
type Manager struct {
	repos     *db.Repositories
	timelines *timeline.Service
	cfg       *config.Config
	// backendFor picks the decode backend for a project
	backendFor func(project *models.Project) BackendFactory

	sessions      map[uuid.UUID]*Session
	mu            sync.RWMutex
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	cleanupDone   chan struct{}
	stopped       bool

	// hwaccel is the decode method resolved from configuration at Start
	hwaccel backend.HWAccel
}

// NewManager creates a session manager
func NewManager(repos *db.Repositories, timelines *timeline.Service, cfg *config.Config) *Manager {
	m := &Manager{
		repos:       repos,
		timelines:   timelines,
		cfg:         cfg,
		sessions:    make(map[uuid.UUID]*Session),
		stopChan:    make(chan struct{}),
		cleanupDone: make(chan struct{}),
		hwaccel:     backend.HWAccelNone,
	}
	m.backendFor = m.configuredBackend
	return m
}

// configuredBackend builds the backend kind selected in configuration
func (m *Manager) configuredBackend(project *models.Project) BackendFactory {
	if m.cfg.Backend.Kind == config.BackendSynthetic {
		return func(sink backend.Sink) Backend { return backend.NewSynthetic(sink) }
	}
	opts := backend.FFmpegOptions{Binary: m.cfg.Backend.FFmpegPath, HWAccel: m.hwaccel}
	return func(sink backend.Sink) Backend {
		return backend.NewFFmpegDecoder(project.SourcePath, opts, sink)
	}
}

// Start resolves the hardware decode method and begins the idle cleanup loop
func (m *Manager) Start() error {
	hwaccel := m.resolveHWAccel(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}

	m.hwaccel = hwaccel
	m.cleanupTicker = time.NewTicker(m.cfg.Session.CleanupInterval)
	go m.runCleanupLoop()

	logger.Log.Info().
		Dur("cleanup_interval", m.cfg.Session.CleanupInterval).
		Dur("idle_timeout", m.cfg.Session.IdleTimeout).
		Str("backend", m.cfg.Backend.Kind).
		Str("hwaccel", hwaccel.String()).
		Msg("Session manager started")

	return nil
}

// resolveHWAccel checks the configured hardware decode method against what ffmpeg
// supports. Anything unusable falls back to software decoding.
func (m *Manager) resolveHWAccel(ctx context.Context) backend.HWAccel {
	requested := backend.HWAccel(m.cfg.Backend.HWAccel)
	if m.cfg.Backend.Kind != config.BackendFFmpeg || !requested.IsValid() || requested == backend.HWAccelNone {
		return backend.HWAccelNone
	}

	available, err := backend.DetectHWAccels(ctx, m.cfg.Backend.FFmpegPath)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("requested", requested.String()).
			Msg("Hardware decode detection failed, using software decoding")
		return backend.HWAccelNone
	}

	resolved, err := backend.ResolveHWAccel(requested, available)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Requested hardware decode method unavailable, using software decoding")
	}
	return resolved
}

// Stop closes every session and shuts the manager down
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	logger.Log.Info().Msg("Stopping session manager...")

	close(m.stopChan)
	if m.cleanupTicker != nil {
		<-m.cleanupDone
		m.cleanupTicker.Stop()
	}

	ids := m.ids()
	for _, id := range ids {
		if err := m.Close(context.Background(), id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			logger.Log.Error().
				Err(err).
				Str("project_id", id.String()).
				Msg("Failed to close session during shutdown")
		}
	}

	logger.Log.Info().
		Int("closed_sessions", len(ids)).
		Msg("Session manager stopped")
}

// Open returns the project's session, creating it when none is open
func (m *Manager) Open(ctx context.Context, projectID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	if m.stopped {
		m.mu.RUnlock()
		return nil, ErrManagerStopped
	}
	existing, ok := m.sessions[projectID]
	m.mu.RUnlock()

	if ok {
		existing.Touch()
		logger.Log.Debug().
			Str("project_id", projectID.String()).
			Int("client_count", existing.ClientCount()).
			Msg("Returning existing session")
		return existing, nil
	}

	project, err := m.repos.Projects.GetByID(ctx, projectID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	tl, err := m.timelines.Load(ctx, projectID)
	if err != nil {
		if errors.Is(err, timeline.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}

	s := New(projectID, tl.Segments, project.LastPlaybackTime, m.backendFor(project), m.sessionOptions())

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		s.Close(ctx)
		return nil, ErrManagerStopped
	}
	// another request may have opened it meanwhile
	if other, ok := m.sessions[projectID]; ok {
		m.mu.Unlock()
		s.Close(ctx)
		return other, nil
	}
	m.sessions[projectID] = s
	m.mu.Unlock()

	logger.Log.Info().
		Str("project_id", projectID.String()).
		Str("name", project.Name).
		Int("segments", len(tl.Segments)).
		Float64("total_duration", tl.TotalDuration).
		Float64("resume_at", project.LastPlaybackTime).
		Msg("Session opened")

	return s, nil
}

func (m *Manager) sessionOptions() Options {
	cfg := m.cfg
	return Options{
		Playback: playback.Options{
			FPS:            cfg.Playback.FPS,
			OutputSize:     frame.Size{Width: cfg.Playback.OutputWidth, Height: cfg.Playback.OutputHeight},
			EndEpsilon:     cfg.Playback.EndEpsilon,
			CommandTimeout: cfg.Playback.CommandTimeout,
		},
		Zoom: zoom.Options{
			MinVisible: cfg.Zoom.MinVisibleSeconds,
			Step:       cfg.Zoom.Step,
			MaxVisible: cfg.Zoom.MaxVisibleSeconds,
		},
		Padding: cfg.Viewport.Padding,
		Breaker: backend.NewCircuitBreaker(cfg.Backend.BreakerThreshold, cfg.Backend.BreakerResetTimeout),
	}
}

// Get returns the open session for a project
func (m *Manager) Get(projectID uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[projectID]
	return s, ok
}

// List returns all open sessions
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Values(m.sessions)
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Backend names the configured decode backend and the hardware decode method
// resolved at Start
func (m *Manager) Backend() (string, backend.HWAccel) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Backend.Kind, m.hwaccel
}

// Close closes a project's session and remembers where its playhead was
func (m *Manager) Close(ctx context.Context, projectID uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[projectID]
	if ok {
		delete(m.sessions, projectID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	playhead := s.Close(ctx)
	if err := m.repos.Projects.SavePlaybackTime(ctx, projectID, playhead); err != nil && !db.IsNotFound(err) {
		logger.Log.Warn().
			Err(err).
			Str("project_id", projectID.String()).
			Msg("Failed to save playback time")
	}

	logger.Log.Info().
		Str("project_id", projectID.String()).
		Float64("playback_time", playhead).
		Dur("open_for", time.Since(s.openedAt)).
		Msg("Session closed")

	return nil
}

// ReloadTimeline refreshes an open session after its project's segments changed.
// It does nothing when no session is open.
func (m *Manager) ReloadTimeline(ctx context.Context, projectID uuid.UUID) error {
	s, ok := m.Get(projectID)
	if !ok {
		return nil
	}

	tl, err := m.timelines.Load(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}
	if err := s.ReloadTimeline(ctx, tl.Segments); err != nil {
		return err
	}

	logger.Log.Info().
		Str("project_id", projectID.String()).
		Int("segments", len(tl.Segments)).
		Float64("total_duration", tl.TotalDuration).
		Msg("Session timeline reloaded")

	return nil
}

func (m *Manager) ids() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.sessions)
}

// runCleanupLoop runs periodic cleanup of idle sessions
func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	logger.Log.Debug().Msg("Cleanup loop started")

	for {
		select {
		case <-m.stopChan:
			logger.Log.Debug().Msg("Cleanup loop stopping")
			return
		case now := <-m.cleanupTicker.C:
			m.performCleanup(now)
		}
	}
}

// performCleanup closes sessions idle for longer than the idle timeout
func (m *Manager) performCleanup(now time.Time) int {
	idle := lo.Filter(m.List(), func(s *Session, _ int) bool {
		return s.Idle(now, m.cfg.Session.IdleTimeout)
	})

	closed := 0
	for _, s := range idle {
		logger.Log.Info().
			Str("project_id", s.ProjectID.String()).
			Dur("idle_duration", now.Sub(s.LastActive())).
			Msg("Closing idle session")

		if err := m.Close(context.Background(), s.ProjectID); err != nil {
			logger.Log.Error().
				Err(err).
				Str("project_id", s.ProjectID.String()).
				Msg("Failed to close idle session during cleanup")
			continue
		}
		closed++
	}

	if closed > 0 {
		logger.Log.Info().
			Int("closed_count", closed).
			Int("active_count", len(m.ids())).
			Msg("Cleanup cycle completed")
	}
	return closed
}
