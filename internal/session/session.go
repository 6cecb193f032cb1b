// Package session assembles the per-project editor runtime: state store, playback
// controller, decode backend, zoom transform, presenter and key routing.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cutroom/internal/backend"
	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/input"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/playback"
	"github.com/stwalsh4118/cutroom/internal/presenter"
	"github.com/stwalsh4118/cutroom/internal/state"
	"github.com/stwalsh4118/cutroom/internal/timeline"
	"github.com/stwalsh4118/cutroom/internal/zoom"
)

// Backend is a decode backend whose timeline can be replaced between runs
type Backend interface {
	playback.Backend
	SetTimeline(segments []timeline.Segment)
}

// Options configures a Session
type Options struct {
	Playback    playback.Options
	Zoom        zoom.Options
	Padding     float64
	Breaker     *backend.CircuitBreaker
	ReportLimit int
}

// BackendFactory builds the decode backend for a session delivering to sink
type BackendFactory func(sink backend.Sink) Backend

// Session is one open project in the editor
type Session struct {
	ProjectID uuid.UUID

	store      *state.Store
	controller *playback.Controller
	zoom       *zoom.Transform
	presenter  *presenter.Presenter
	surface    *presenter.MemorySurface
	router     *input.Router
	backend    Backend
	guarded    *backend.Guarded
	reporter   *playback.LogReporter
	latest     *frame.Latest

	clients    atomic.Int32
	lastActive atomic.Int64
	openedAt   time.Time

	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
	closeOnce  sync.Once
}

// New assembles a session and loads segments into it. The playhead starts at
// resumeAt, clamped to the timeline.
func New(projectID uuid.UUID, segments []timeline.Segment, resumeAt float64, newBackend BackendFactory, opts Options) *Session {
	s := &Session{
		ProjectID: projectID,
		store:     state.NewStore(),
		surface:   presenter.NewMemorySurface(),
		router:    input.NewRouter(),
		latest:    frame.NewLatest(),
		openedAt:  time.Now(),
	}
	s.Touch()

	log := logger.Log.With().Str("project_id", projectID.String()).Logger()
	s.reporter = playback.NewLogReporter(log, opts.ReportLimit)

	s.backend = newBackend(sessionSink{s: s})
	breaker := opts.Breaker
	if breaker == nil {
		breaker = backend.NewCircuitBreaker(5, 10*time.Second)
	}
	s.guarded = backend.Guard(s.backend, breaker)

	s.backend.SetTimeline(segments)
	s.store.SetTimeline(segments)
	s.store.SetPlaybackTime(resumeAt)

	playOpts := opts.Playback
	playOpts.Name = projectID.String()
	s.controller = playback.NewController(s.store, s.guarded, s.reporter, playOpts)
	s.zoom = zoom.NewTransform(s.store, opts.Zoom)
	s.zoom.Reset()
	s.presenter = presenter.New(s.store, s.surface, opts.Padding)

	// binding a non-empty code to a non-nil action cannot fail
	_ = s.router.Bind(input.KeySpace, s.controller.TogglePlayback)

	ctx, cancel := context.WithCancel(context.Background())
	s.pumpCancel = cancel
	s.pumpDone = make(chan struct{})
	go s.pump(ctx)

	return s
}

// pump moves the newest decoded frame into the store, dropping any it was too slow for
func (s *Session) pump(ctx context.Context) {
	defer close(s.pumpDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.latest.Ready():
			if f, ok := s.latest.Take(); ok {
				s.store.ReplaceFrame(f)
			}
		}
	}
}

// Store returns the session's state store
func (s *Session) Store() *state.Store { return s.store }

// Controller returns the playback controller
func (s *Session) Controller() *playback.Controller { return s.controller }

// Zoom returns the zoom transform
func (s *Session) Zoom() *zoom.Transform { return s.zoom }

// Presenter returns the frame presenter
func (s *Session) Presenter() *presenter.Presenter { return s.presenter }

// Surface returns the surface holding the last presented frame
func (s *Session) Surface() *presenter.MemorySurface { return s.surface }

// Reporter returns the backend failure reporter
func (s *Session) Reporter() *playback.LogReporter { return s.reporter }

// Breaker returns the circuit breaker guarding the backend
func (s *Session) Breaker() *backend.CircuitBreaker { return s.guarded.Breaker() }

// HandleKey routes a viewport key event and reports whether it was consumed
func (s *Session) HandleKey(ctx context.Context, ev input.KeyEvent) (bool, error) {
	s.Touch()
	return s.router.Dispatch(ctx, ev)
}

// SetViewport records new viewport bounds
func (s *Session) SetViewport(b presenter.Bounds) {
	s.Touch()
	s.presenter.SetBounds(b)
}

// ReloadTimeline replaces the segments. Playback is stopped and the swap runs
// inside the controller's action, so the backend never plays a stale list.
func (s *Session) ReloadTimeline(ctx context.Context, segments []timeline.Segment) error {
	return s.controller.Reload(ctx, func() {
		s.backend.SetTimeline(segments)
		s.store.SetTimeline(segments)
		snap := s.store.Snapshot()
		s.zoom.UpdateZoom(snap.Zoom, snap.PlaybackTime)
	})
}

// Touch marks the session as recently used
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when the session was last used
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// AddClient registers a connected viewport and returns the new count
func (s *Session) AddClient() int {
	s.Touch()
	return int(s.clients.Add(1))
}

// RemoveClient unregisters a viewport and returns the new count
func (s *Session) RemoveClient() int {
	s.Touch()
	n := s.clients.Add(-1)
	if n < 0 {
		s.clients.Store(0)
		n = 0
	}
	return int(n)
}

// ClientCount returns the number of connected viewports
func (s *Session) ClientCount() int {
	return int(s.clients.Load())
}

// Idle reports whether the session has no viewers, is not playing and has not
// been used for longer than timeout
func (s *Session) Idle(now time.Time, timeout time.Duration) bool {
	if s.ClientCount() > 0 || s.store.Snapshot().Playing {
		return false
	}
	return now.Sub(s.LastActive()) > timeout
}

// Close stops playback and releases the session. It returns the final playhead.
func (s *Session) Close(ctx context.Context) float64 {
	s.closeOnce.Do(func() {
		if err := s.controller.Stop(ctx); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("project_id", s.ProjectID.String()).
				Msg("Failed to stop playback while closing session")
			// make sure no decode loop outlives the session
			_ = s.backend.StopPlayback(ctx)
		}
		s.controller.Close()
		s.presenter.Close()
		s.pumpCancel()
		<-s.pumpDone
	})
	return s.store.Snapshot().PlaybackTime
}

// sessionSink feeds backend output into the session
type sessionSink struct {
	s *Session
}

func (k sessionSink) PushFrame(f *frame.Frame) {
	k.s.latest.Offer(f)
}

func (k sessionSink) Progress(t float64) {
	k.s.controller.Advance(t)
}

func (k sessionSink) Failed(err error) {
	k.s.guarded.Breaker().RecordFailure(err)
	k.s.controller.BackendFailed(err)
}
