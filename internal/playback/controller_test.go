package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/state"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

// mockBackend records every call in order and fails ops listed in failOn
type mockBackend struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func newMockBackend() *mockBackend {
	return &mockBackend{failOn: make(map[string]error)}
}

func (m *mockBackend) record(call, op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.failOn[op]
}

func (m *mockBackend) SeekTo(_ context.Context, frameIndex int64) error {
	return m.record(fmt.Sprintf("seek(%d)", frameIndex), OpSeek)
}

func (m *mockBackend) StartPlayback(_ context.Context, fps int, size frame.Size) error {
	return m.record(fmt.Sprintf("start(%d,%dx%d)", fps, size.Width, size.Height), OpStart)
}

func (m *mockBackend) StopPlayback(context.Context) error {
	return m.record("stop", OpStop)
}

func (m *mockBackend) fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[op] = err
}

func (m *mockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockBackend) count(call string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

type fixture struct {
	store    *state.Store
	backend  *mockBackend
	reporter *LogReporter
	ctrl     *Controller
}

// newFixture builds a controller over a timeline of the given total duration
func newFixture(t *testing.T, total float64) *fixture {
	store := state.NewStore()
	if total > 0 {
		store.SetTimeline([]timeline.Segment{{Start: 0, End: total, Timescale: 1}})
	}
	backend := newMockBackend()
	reporter := NewLogReporter(zerolog.Nop(), 10)
	ctrl := NewController(store, backend, reporter, Options{
		FPS:            30,
		OutputSize:     frame.Size{Width: 1920, Height: 1080},
		EndEpsilon:     0.1,
		CommandTimeout: time.Second,
	})
	t.Cleanup(ctrl.Close)
	return &fixture{store: store, backend: backend, reporter: reporter, ctrl: ctrl}
}

func TestAtEnd(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		t     float64
		want  bool
	}{
		{"exactly at end", 10, 10, true},
		{"within epsilon", 10, 9.95, true},
		{"on epsilon boundary", 10, 9.9, true},
		{"outside epsilon", 10, 9.8, false},
		{"zero duration never ends", 0, 0, false},
		{"zero duration with time", 0, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AtEnd(tt.total, tt.t, 0.1))
		})
	}
}

func TestPlay_FromStopped(t *testing.T) {
	f := newFixture(t, 10)
	f.store.SetPlaybackTime(2)
	f.store.SetPreviewTime(5)

	require.NoError(t, f.ctrl.Play(context.Background()))

	assert.Equal(t, []string{"seek(60)", "start(30,1920x1080)"}, f.backend.Calls())
	snap := f.store.Snapshot()
	assert.True(t, snap.Playing)
	assert.True(t, snap.PreviewTime.IsAbsent())
	assert.Equal(t, GlyphPause, f.ctrl.Glyph())
}

func TestPlay_WhilePlayingPauses(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ctrl.Play(context.Background()))

	require.NoError(t, f.ctrl.Play(context.Background()))

	assert.Equal(t, []string{"seek(0)", "start(30,1920x1080)", "stop"}, f.backend.Calls())
	assert.False(t, f.store.Snapshot().Playing)
	assert.Equal(t, GlyphPlay, f.ctrl.Glyph())
}

func TestPlay_AtEndRestartsFromZero(t *testing.T) {
	f := newFixture(t, 10)
	f.store.SetPlaybackTime(10)
	require.True(t, f.ctrl.IsAtEnd())

	require.NoError(t, f.ctrl.Play(context.Background()))

	assert.Equal(t, []string{"stop", "seek(0)", "start(30,1920x1080)"}, f.backend.Calls())
	snap := f.store.Snapshot()
	assert.Zero(t, snap.PlaybackTime)
	assert.True(t, snap.Playing)
}

func TestPlay_StartFailureRollsBack(t *testing.T) {
	f := newFixture(t, 10)
	boom := errors.New("decoder unavailable")
	f.backend.fail(OpStart, boom)

	err := f.ctrl.Play(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsCommandError(err))
	assert.False(t, f.store.Snapshot().Playing)

	recent := f.reporter.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, ActionPlay, recent[0].Action)
	assert.Equal(t, OpStart, recent[0].Op)

	// no automatic retry
	assert.Equal(t, 1, f.backend.count("start(30,1920x1080)"))
}

func TestPlay_SeekFailureSkipsStart(t *testing.T) {
	f := newFixture(t, 10)
	f.backend.fail(OpSeek, errors.New("seek failed"))

	require.Error(t, f.ctrl.Play(context.Background()))

	assert.Equal(t, []string{"seek(0)"}, f.backend.Calls())
	assert.False(t, f.store.Snapshot().Playing)
}

func TestPlay_StopFailureWhilePlayingStillStops(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ctrl.Play(context.Background()))
	f.backend.fail(OpStop, errors.New("stop failed"))

	require.Error(t, f.ctrl.Play(context.Background()))
	assert.False(t, f.store.Snapshot().Playing)
	assert.Equal(t, uint64(1), f.reporter.Total())
}

func TestTogglePlayback_CommitsPreview(t *testing.T) {
	f := newFixture(t, 10)
	require.True(t, f.ctrl.SetPreview(4.2))

	require.NoError(t, f.ctrl.TogglePlayback(context.Background()))

	calls := f.backend.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "seek(126)", calls[0])
	assert.Equal(t, "start(30,1920x1080)", calls[len(calls)-1])

	snap := f.store.Snapshot()
	assert.InDelta(t, 4.2, snap.PlaybackTime, 1e-9)
	assert.True(t, snap.PreviewTime.IsAbsent())
	assert.True(t, snap.Playing)
}

func TestTogglePlayback_WhilePlayingPauses(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ctrl.Play(context.Background()))

	require.NoError(t, f.ctrl.TogglePlayback(context.Background()))

	assert.False(t, f.store.Snapshot().Playing)
	assert.Equal(t, "stop", f.backend.Calls()[2])
}

func TestTogglePlayback_SeekFailureDoesNotStart(t *testing.T) {
	f := newFixture(t, 10)
	f.ctrl.SetPreview(3)
	f.backend.fail(OpSeek, errors.New("seek failed"))

	require.Error(t, f.ctrl.TogglePlayback(context.Background()))
	assert.Equal(t, 0, f.backend.count("start(30,1920x1080)"))
	assert.False(t, f.store.Snapshot().Playing)
}

func TestSkipToStartAndEnd(t *testing.T) {
	f := newFixture(t, 10)
	f.store.SetPlaybackTime(4)
	require.NoError(t, f.ctrl.Play(context.Background()))

	require.NoError(t, f.ctrl.SkipToEnd(context.Background()))
	snap := f.store.Snapshot()
	assert.False(t, snap.Playing)
	assert.InDelta(t, 10.0, snap.PlaybackTime, 1e-9)

	require.NoError(t, f.ctrl.SkipToStart(context.Background()))
	snap = f.store.Snapshot()
	assert.False(t, snap.Playing)
	assert.Zero(t, snap.PlaybackTime)

	// skips never seek
	assert.Equal(t, 1, f.backend.count("seek(120)"))
	assert.Equal(t, 2, f.backend.count("stop"))
}

func TestSkipToStart_StopFailureStillResets(t *testing.T) {
	f := newFixture(t, 10)
	f.store.SetPlaybackTime(6)
	require.NoError(t, f.ctrl.Play(context.Background()))
	f.backend.fail(OpStop, errors.New("stop failed"))

	err := f.ctrl.SkipToStart(context.Background())

	require.Error(t, err)
	snap := f.store.Snapshot()
	assert.False(t, snap.Playing)
	assert.Zero(t, snap.PlaybackTime)
	assert.Equal(t, ActionSkipToStart, f.reporter.Recent()[0].Action)
}

func TestAutoStop_FiresExactlyOnce(t *testing.T) {
	f := newFixture(t, 10)
	f.store.SetPlaybackTime(10)
	f.store.SetPlaying(true)

	f.ctrl.pending.Wait()

	assert.False(t, f.store.Snapshot().Playing)
	assert.Equal(t, 1, f.backend.count("stop"))

	// re-evaluation with unchanged state does nothing
	assert.False(t, f.ctrl.Evaluate(context.Background()))
	f.store.SetPlaybackTime(10)
	f.ctrl.pending.Wait()
	assert.Equal(t, 1, f.backend.count("stop"))
}

func TestAutoStop_StopsBackendDespiteNoOpAction(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t, 10)
		f.store.SetPlaybackTime(10)
		f.store.SetPlaying(true)

		// playing is already off, so this touches nothing on the backend
		require.NoError(t, f.ctrl.Stop(context.Background()))
		f.ctrl.pending.Wait()

		require.Equal(t, 1, f.backend.count("stop"), "run %d: %v", i, f.backend.Calls())
	}
}

func TestAutoStop_SkippedWhenActionRestartsBackend(t *testing.T) {
	f := newFixture(t, 10)
	f.store.SetPlaybackTime(10)
	f.store.SetPlaying(true)

	// at the end, play stops the backend itself and restarts from zero
	require.NoError(t, f.ctrl.Play(context.Background()))
	f.ctrl.pending.Wait()

	calls := f.backend.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "start(30,1920x1080)", calls[len(calls)-1])
	assert.True(t, f.store.Snapshot().Playing)
	assert.Equal(t, 0.0, f.store.Snapshot().PlaybackTime)
}

func TestAutoStop_FromBackendProgress(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ctrl.Play(context.Background()))

	for _, ts := range []float64{3, 6, 9.5, 9.93, 9.97, 10} {
		f.ctrl.Advance(ts)
	}
	f.ctrl.pending.Wait()

	snap := f.store.Snapshot()
	assert.False(t, snap.Playing)
	assert.InDelta(t, 9.93, snap.PlaybackTime, 1e-9)
	assert.Equal(t, 1, f.backend.count("stop"))
	assert.Equal(t, GlyphPlay, f.ctrl.Glyph())
}

func TestAutoStop_ZeroDurationNeverEnds(t *testing.T) {
	f := newFixture(t, 0)
	f.store.SetPlaying(true)

	assert.False(t, f.ctrl.Evaluate(context.Background()))
	f.ctrl.pending.Wait()
	assert.True(t, f.store.Snapshot().Playing)
	assert.Empty(t, f.backend.Calls())
}

func TestAutoStop_FailureIsReported(t *testing.T) {
	f := newFixture(t, 10)
	f.backend.fail(OpStop, errors.New("stop failed"))
	f.store.SetPlaybackTime(10)
	f.store.SetPlaying(true)
	f.ctrl.pending.Wait()

	assert.False(t, f.store.Snapshot().Playing)
	recent := f.reporter.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, ActionAutoStop, recent[0].Action)
}

func TestAdvance_IgnoredWhenStopped(t *testing.T) {
	f := newFixture(t, 10)
	f.ctrl.Advance(5)
	assert.Zero(t, f.store.Snapshot().PlaybackTime)
}

func TestPreviewIgnoredWhilePlaying(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ctrl.Play(context.Background()))

	assert.False(t, f.ctrl.SetPreview(3))
	assert.True(t, f.store.Snapshot().PreviewTime.IsAbsent())
}

func TestActionsAreSerialized(t *testing.T) {
	f := newFixture(t, 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.ctrl.Play(context.Background())
		}()
	}
	wg.Wait()

	// eight alternating play/pause actions leave playback stopped
	assert.False(t, f.store.Snapshot().Playing)
	assert.Equal(t, 4, f.backend.count("start(30,1920x1080)"))
	assert.Equal(t, 4, f.backend.count("stop"))
}

func TestStop_PausesInPlace(t *testing.T) {
	f := newFixture(t, 10)

	// stopping while stopped touches nothing
	require.NoError(t, f.ctrl.Stop(context.Background()))
	assert.Empty(t, f.backend.Calls())

	require.NoError(t, f.ctrl.Play(context.Background()))
	f.ctrl.Advance(4)
	require.NoError(t, f.ctrl.Stop(context.Background()))

	assert.Equal(t, []string{"seek(0)", "start(30,1920x1080)", "stop"}, f.backend.Calls())
	snap := f.store.Snapshot()
	assert.False(t, snap.Playing)
	assert.Equal(t, 4.0, snap.PlaybackTime)
}

func TestBackendFailed_StopsAndReports(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ctrl.Play(context.Background()))
	f.ctrl.Advance(3)

	f.ctrl.BackendFailed(errors.New("decoder crashed"))
	f.ctrl.BackendFailed(nil)

	snap := f.store.Snapshot()
	assert.False(t, snap.Playing)
	assert.Equal(t, 3.0, snap.PlaybackTime)

	recent := f.reporter.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, ActionPlayback, recent[0].Action)
	assert.Equal(t, OpDecode, recent[0].Op)
	// the backend already stopped itself
	assert.Equal(t, 0, f.backend.count("stop"))
}

func TestClosedControllerRejectsActions(t *testing.T) {
	f := newFixture(t, 10)
	f.ctrl.Close()

	assert.ErrorIs(t, f.ctrl.Play(context.Background()), ErrClosed)
	assert.ErrorIs(t, f.ctrl.SkipToEnd(context.Background()), ErrClosed)
}

func TestLogReporter_BoundedHistory(t *testing.T) {
	r := NewLogReporter(zerolog.Nop(), 2)
	for i := 0; i < 3; i++ {
		r.Report(&CommandError{Action: ActionPlay, Op: OpStart, Err: fmt.Errorf("fail %d", i)})
	}
	r.Report(nil)

	recent := r.Recent()
	require.Len(t, recent, 2)
	assert.EqualError(t, recent[0].Err, "fail 1")
	assert.Equal(t, uint64(3), r.Total())
}

func TestNewController_EndEpsilonDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"negative selects default", -1, defaultEndEpsilon},
		{"zero means exact end", 0, 0},
		{"explicit", 0.25, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewController(state.NewStore(), newMockBackend(), nil, Options{EndEpsilon: tt.in})
			defer ctrl.Close()
			assert.Equal(t, tt.want, ctrl.Options().EndEpsilon)
		})
	}
}

func TestReload_SwapsUnderActionLock(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Play(ctx))
	f.ctrl.Advance(4)

	playDone := make(chan error, 1)
	err := f.ctrl.Reload(ctx, func() {
		assert.False(t, f.store.Snapshot().Playing)
		go func() { playDone <- f.ctrl.Play(ctx) }()
		// the concurrent play must wait for the swap to finish
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, f.backend.count("start(30,1920x1080)"))
		f.store.SetTimeline([]timeline.Segment{{Start: 0, End: 6, Timescale: 1}})
	})
	require.NoError(t, err)
	require.NoError(t, <-playDone)

	assert.Equal(t, []string{
		"seek(0)", "start(30,1920x1080)",
		"stop",
		"seek(120)", "start(30,1920x1080)",
	}, f.backend.Calls())
	snap := f.store.Snapshot()
	assert.True(t, snap.Playing)
	assert.Equal(t, 6.0, snap.TotalDuration)
}

func TestReload_WhileStoppedOnlySwaps(t *testing.T) {
	f := newFixture(t, 10)
	swapped := false
	require.NoError(t, f.ctrl.Reload(context.Background(), func() { swapped = true }))
	assert.True(t, swapped)
	assert.Empty(t, f.backend.Calls())
}
