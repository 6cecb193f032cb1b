package session

import (
	"time"

	"github.com/samber/lo"
	"github.com/stwalsh4118/cutroom/internal/playback"
	"github.com/stwalsh4118/cutroom/internal/presenter"
	"github.com/stwalsh4118/cutroom/internal/state"
	"github.com/stwalsh4118/cutroom/internal/timeline"
	"github.com/stwalsh4118/cutroom/internal/zoom"
)

// View is the display state of a session as served to clients
type View struct {
	ProjectID     string          `json:"project_id"`
	Playing       bool            `json:"playing"`
	AtEnd         bool            `json:"at_end"`
	Glyph         playback.Glyph  `json:"glyph"`
	PlaybackTime  float64         `json:"playback_time"`
	PreviewTime   *float64        `json:"preview_time,omitempty"`
	DisplayTime   float64         `json:"display_time"`
	TotalDuration float64         `json:"total_duration"`
	PlaybackLabel string          `json:"playback_label"`
	DisplayLabel  string          `json:"display_label"`
	TotalLabel    string          `json:"total_label"`
	Speed         *string         `json:"speed,omitempty"`
	Segments      int             `json:"segments"`
	Zoom          zoom.View       `json:"zoom"`
	Render        *presenter.Rect `json:"render,omitempty"`
	FrameSeq      uint64          `json:"frame_seq"`
	Clients       int             `json:"clients"`
}

// View derives the current display state
func (s *Session) View() View {
	return s.viewOf(s.store.Snapshot())
}

func (s *Session) viewOf(snap state.Snapshot) View {
	opts := s.controller.Options()

	v := View{
		ProjectID:     s.ProjectID.String(),
		Playing:       snap.Playing,
		AtEnd:         playback.AtEnd(snap.TotalDuration, snap.PlaybackTime, opts.EndEpsilon),
		Glyph:         playback.GlyphFor(snap, opts.EndEpsilon),
		PlaybackTime:  snap.PlaybackTime,
		DisplayTime:   snap.DisplayTime(),
		TotalDuration: snap.TotalDuration,
		PlaybackLabel: timeline.FormatTime(snap.PlaybackTime, opts.FPS),
		DisplayLabel:  timeline.FormatTime(snap.DisplayTime(), opts.FPS),
		TotalLabel:    timeline.FormatTime(snap.TotalDuration, opts.FPS),
		Segments:      len(snap.Segments),
		Zoom:          s.zoom.View(snap),
		Clients:       s.ClientCount(),
	}

	if t, ok := snap.PreviewTime.Get(); ok {
		v.PreviewTime = &t
	}
	if speed, ok := timeline.CurrentSpeed(snap.CurrentSegment()).Get(); ok {
		v.Speed = &speed
	}
	if r, ok := s.presenter.Layout(); ok {
		v.Render = &r
	}
	if snap.Frame != nil {
		v.FrameSeq = snap.Frame.Seq
	}

	return v
}

// Subscribe calls fn with the derived view after every state change.
// It returns a function that cancels the subscription.
func (s *Session) Subscribe(fn func(View, state.Change)) func() {
	return s.store.Subscribe(func(snap state.Snapshot, change state.Change) {
		fn(s.viewOf(snap), change)
	})
}

// Diagnostics summarizes backend health for a session
type Diagnostics struct {
	BreakerState   string            `json:"breaker_state"`
	BreakerFailure int               `json:"breaker_failures"`
	TotalFailures  uint64            `json:"total_failures"`
	Recent         []DiagnosticEntry `json:"recent"`
	FramesOffered  uint64            `json:"frames_offered"`
	FramesDropped  uint64            `json:"frames_dropped"`
	Draws          uint64            `json:"draws"`
	Resizes        uint64            `json:"resizes"`
	Bounds         presenter.Bounds  `json:"bounds"`
}

// DiagnosticEntry is one reported backend failure
type DiagnosticEntry struct {
	Action string `json:"action"`
	Op     string `json:"op"`
	Error  string `json:"error"`
	At     string `json:"at"`
}

// Diagnostics collects the session's failure history and pipeline counters
func (s *Session) Diagnostics() Diagnostics {
	offered, dropped := s.latest.Stats()
	draws, resizes := s.surface.Counts()
	breaker := s.Breaker()

	d := Diagnostics{
		BreakerState:   string(breaker.State()),
		BreakerFailure: breaker.Failures(),
		TotalFailures:  s.reporter.Total(),
		Recent: lo.Map(s.reporter.Recent(), func(e *playback.CommandError, _ int) DiagnosticEntry {
			return DiagnosticEntry{
				Action: e.Action,
				Op:     e.Op,
				Error:  e.Err.Error(),
				At:     e.At.Format(time.RFC3339Nano),
			}
		}),
		FramesOffered: offered,
		FramesDropped: dropped,
		Draws:         draws,
		Resizes:       resizes,
		Bounds:        s.presenter.Bounds(),
	}
	return d
}
