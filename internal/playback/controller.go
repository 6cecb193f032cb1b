// Package playback coordinates play, pause, seek and skip actions against an
// external decode backend and keeps the session state consistent with it.
package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/state"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

const (
	defaultFPS            = 30
	defaultEndEpsilon     = 0.1
	defaultCommandTimeout = 5 * time.Second
)

// Backend is the command surface of a decode backend. Stopping an already
// stopped backend must be harmless.
type Backend interface {
	SeekTo(ctx context.Context, frameIndex int64) error
	StartPlayback(ctx context.Context, fps int, size frame.Size) error
	StopPlayback(ctx context.Context) error
}

// Glyph is the icon the play/pause control should show
type Glyph string

const (
	GlyphPlay  Glyph = "play"
	GlyphPause Glyph = "pause"
)

// Options configures a Controller
type Options struct {
	FPS        int
	OutputSize frame.Size
	// EndEpsilon is how close to the total duration counts as the end. Zero
	// means only the exact end; a negative value selects the 0.1s default.
	EndEpsilon     float64
	CommandTimeout time.Duration
	// Name identifies the controller in logs, usually the project ID
	Name string
}

// step is one stage of a control action; steps run in order and the first failure aborts the rest
type step struct {
	op  string
	run func(ctx context.Context) error
}

// Controller drives the backend from control actions. Actions are serialized:
// a new action waits for the one in flight to finish.
type Controller struct {
	store    *state.Store
	backend  Backend
	reporter Reporter
	opts     Options
	log      zerolog.Logger

	actionMu sync.Mutex
	// backendEpoch advances whenever a stop or start is issued to the backend, so a
	// deferred auto-stop can tell that a later action already took the backend over
	backendEpoch atomic.Uint64
	closed       atomic.Bool
	pending      sync.WaitGroup
	unsubscribe  func()
}

// NewController creates a controller and starts watching the store for end of media
func NewController(store *state.Store, backend Backend, reporter Reporter, opts Options) *Controller {
	if opts.FPS <= 0 {
		opts.FPS = defaultFPS
	}
	if opts.EndEpsilon < 0 {
		opts.EndEpsilon = defaultEndEpsilon
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}

	c := &Controller{
		store:    store,
		backend:  backend,
		reporter: reporter,
		opts:     opts,
		log:      logger.Log.With().Str("session", opts.Name).Logger(),
	}
	c.unsubscribe = store.Subscribe(c.watchEnd)
	return c
}

// Close stops watching the store and waits for any deferred auto-stop to finish
func (c *Controller) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.unsubscribe()
	c.pending.Wait()
}

// AtEnd reports whether t is within epsilon of a positive total duration
func AtEnd(total, t, epsilon float64) bool {
	return total > 0 && total-t <= epsilon
}

// IsAtEnd reports whether the playhead is at the end of the timeline
func (c *Controller) IsAtEnd() bool {
	return c.atEnd(c.store.Snapshot())
}

// Glyph returns the icon for the play/pause control
func (c *Controller) Glyph() Glyph {
	return GlyphFor(c.store.Snapshot(), c.opts.EndEpsilon)
}

// GlyphFor derives the play/pause icon from a snapshot
func GlyphFor(snap state.Snapshot, epsilon float64) Glyph {
	if !snap.Playing || AtEnd(snap.TotalDuration, snap.PlaybackTime, epsilon) {
		return GlyphPlay
	}
	return GlyphPause
}

// Options returns the controller's effective options
func (c *Controller) Options() Options {
	return c.opts
}

// Play starts playback, pauses it when already playing, or restarts from the
// beginning when the playhead is at the end.
func (c *Controller) Play(ctx context.Context) error {
	return c.act(ctx, ActionPlay, c.playSteps)
}

// TogglePlayback is the keyboard toggle. When stopped it first commits any preview
// time into the playhead and seeks there, then behaves like Play.
func (c *Controller) TogglePlayback(ctx context.Context) error {
	return c.act(ctx, ActionToggle, func(snap state.Snapshot) []step {
		if snap.Playing {
			return c.playSteps(snap)
		}

		t, _ := c.store.CommitPreview()
		snap = c.store.Snapshot()
		steps := []step{c.seekStep(timeline.FrameIndex(t, c.opts.FPS))}
		return append(steps, c.playSteps(snap)...)
	})
}

// Stop pauses playback in place. It does nothing when already stopped.
func (c *Controller) Stop(ctx context.Context) error {
	return c.act(ctx, ActionStop, func(snap state.Snapshot) []step {
		if !snap.Playing {
			return nil
		}
		return []step{
			c.stopStep(),
			c.localStep(func() { c.store.SetPlaying(false) }),
		}
	})
}

// SkipToStart stops playback and moves the playhead to zero. The state is
// reset even when the backend fails to stop; the failure is still reported.
func (c *Controller) SkipToStart(ctx context.Context) error {
	return c.skip(ctx, ActionSkipToStart, func(state.Snapshot) float64 { return 0 })
}

// SkipToEnd stops playback and moves the playhead to the total duration
func (c *Controller) SkipToEnd(ctx context.Context) error {
	return c.skip(ctx, ActionSkipToEnd, func(snap state.Snapshot) float64 { return snap.TotalDuration })
}

// Advance accepts a playback position reported by the backend while playing.
// Reports arriving while stopped are ignored.
func (c *Controller) Advance(t float64) {
	if !c.store.Snapshot().Playing {
		return
	}
	c.store.SetPlaybackTime(t)
}

// Evaluate re-runs end-of-media detection synchronously and reports whether it stopped playback
func (c *Controller) Evaluate(ctx context.Context) bool {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	if !c.store.StopIfPlaying(c.atEnd) {
		return false
	}
	c.autoStop(ctx)
	return true
}

// Reload stops playback and runs swap while no other action can reach the
// backend, so a play issued concurrently starts from whatever swap installed
func (c *Controller) Reload(ctx context.Context, swap func()) error {
	return c.act(ctx, ActionReload, func(snap state.Snapshot) []step {
		var steps []step
		if snap.Playing {
			steps = append(steps,
				c.stopStep(),
				c.localStep(func() { c.store.SetPlaying(false) }),
			)
		}
		return append(steps, c.localStep(swap))
	})
}

// BackendFailed handles a failure the backend raised on its own while playing.
// Playback is marked stopped and the failure is reported.
func (c *Controller) BackendFailed(err error) {
	if err == nil {
		return
	}
	c.store.StopIfPlaying(func(state.Snapshot) bool { return true })
	_ = c.report(ActionPlayback, OpDecode, err)
}

// SetPreview sets the scrub position; it has no effect while playing
func (c *Controller) SetPreview(t float64) bool {
	return c.store.SetPreviewTime(t)
}

// ClearPreview drops the scrub position
func (c *Controller) ClearPreview() {
	c.store.ClearPreviewTime()
}

// playSteps builds the play sequence for the given state
func (c *Controller) playSteps(snap state.Snapshot) []step {
	switch {
	case c.atEnd(snap):
		return []step{
			c.stopStep(),
			c.localStep(func() { c.store.SetPlaybackTime(0) }),
			c.seekStep(0),
			c.startStep(),
			c.localStep(func() { c.store.SetPlaying(true) }),
		}
	case snap.Playing:
		return []step{
			c.stopStep(),
			c.localStep(func() { c.store.SetPlaying(false) }),
		}
	default:
		return []step{
			c.seekStep(timeline.FrameIndex(snap.PlaybackTime, c.opts.FPS)),
			c.startStep(),
			c.localStep(func() { c.store.SetPlaying(true) }),
		}
	}
}

// act serializes an action, builds its steps from the current state and runs them
func (c *Controller) act(ctx context.Context, action string, build func(state.Snapshot) []step) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	steps := build(c.store.Snapshot())
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			return c.rollback(action, s.op, err)
		}
	}

	c.log.Debug().
		Str("action", action).
		Int("steps", len(steps)).
		Bool("playing", c.store.Snapshot().Playing).
		Msg("Playback action completed")
	return nil
}

func (c *Controller) skip(ctx context.Context, action string, target func(state.Snapshot) float64) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	stopErr := c.stopStep().run(ctx)
	c.store.SetPlaying(false)
	c.store.SetPlaybackTime(target(c.store.Snapshot()))

	if stopErr != nil {
		return c.report(action, OpStop, stopErr)
	}
	return nil
}

// rollback is the single failure path for control actions: playback is marked
// stopped and the failure is reported.
func (c *Controller) rollback(action, op string, err error) error {
	c.store.SetPlaying(false)
	return c.report(action, op, err)
}

func (c *Controller) report(action, op string, err error) error {
	cmdErr := &CommandError{Action: action, Op: op, Err: err, At: time.Now().UTC()}
	if c.reporter != nil {
		c.reporter.Report(cmdErr)
	}
	return cmdErr
}

func (c *Controller) seekStep(frameIndex int64) step {
	return step{op: OpSeek, run: func(ctx context.Context) error {
		return c.call(ctx, func(cctx context.Context) error { return c.backend.SeekTo(cctx, frameIndex) })
	}}
}

func (c *Controller) startStep() step {
	return step{op: OpStart, run: func(ctx context.Context) error {
		c.backendEpoch.Add(1)
		return c.call(ctx, func(cctx context.Context) error {
			return c.backend.StartPlayback(cctx, c.opts.FPS, c.opts.OutputSize)
		})
	}}
}

func (c *Controller) stopStep() step {
	return step{op: OpStop, run: func(ctx context.Context) error {
		c.backendEpoch.Add(1)
		return c.call(ctx, c.backend.StopPlayback)
	}}
}

func (c *Controller) localStep(fn func()) step {
	return step{run: func(context.Context) error {
		fn()
		return nil
	}}
}

// call bounds one backend command by the command timeout
func (c *Controller) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, c.opts.CommandTimeout)
	defer cancel()
	return fn(cctx)
}

func (c *Controller) atEnd(snap state.Snapshot) bool {
	return AtEnd(snap.TotalDuration, snap.PlaybackTime, c.opts.EndEpsilon)
}

// watchEnd flips playing off the moment the playhead reaches the end. The flag is
// cleared synchronously; the backend stop is deferred because the change may have
// been reported from the backend's own delivery goroutine.
func (c *Controller) watchEnd(snap state.Snapshot, change state.Change) {
	if !change.Has(state.ChangePlayback|state.ChangeTimeline) || !snap.Playing || !c.atEnd(snap) {
		return
	}
	if !c.store.StopIfPlaying(c.atEnd) {
		return
	}

	epoch := c.backendEpoch.Load()
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		c.actionMu.Lock()
		defer c.actionMu.Unlock()

		// a later action already stopped or restarted the backend
		if c.backendEpoch.Load() != epoch {
			return
		}
		c.autoStop(context.Background())
	}()
}

func (c *Controller) autoStop(ctx context.Context) {
	c.log.Debug().
		Float64("playback_time", c.store.Snapshot().PlaybackTime).
		Msg("End of media reached, stopping playback")

	if err := c.stopStep().run(ctx); err != nil {
		_ = c.report(ActionAutoStop, OpStop, err)
	}
}
