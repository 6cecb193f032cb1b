// Package zoom maps the timeline zoom slider onto a visible duration and applies
// zoom changes to the session state within configured bounds.
package zoom

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/stwalsh4118/cutroom/internal/state"
)

// Options bound the zoom range
type Options struct {
	// MinVisible is the fully zoomed-in visible duration in seconds
	MinVisible float64
	// Step is the multiplier applied by the zoom buttons
	Step float64
	// MaxVisible caps the zoom-out limit when positive
	MaxVisible float64
}

// View is the derived zoom state for display
type View struct {
	Seconds float64 `json:"seconds"`
	Slider  float64 `json:"slider"`
	Limit   float64 `json:"limit"`
	Label   string  `json:"label"`
}

// Transform is the only writer of the store's zoom fields
type Transform struct {
	store *state.Store
	opts  Options
}

// NewTransform creates a zoom transform over store
func NewTransform(store *state.Store, opts Options) *Transform {
	return &Transform{store: store, opts: opts}
}

// Limit returns the zoom-out ceiling for a timeline of the given total duration
func (t *Transform) Limit(total float64) float64 {
	limit := total
	if t.opts.MaxVisible > 0 && (limit <= 0 || limit > t.opts.MaxVisible) {
		limit = t.opts.MaxVisible
	}
	return limit
}

// Clamp bounds z to [MinVisible, limit]. When the limit is below the minimum the
// minimum wins.
func (t *Transform) Clamp(z, limit float64) float64 {
	return lo.Clamp(z, t.opts.MinVisible, max(limit, t.opts.MinVisible))
}

// UpdateZoom sets the visible duration, anchored on anchorTime, and returns the applied value.
// The limit is read from the store at call time.
func (t *Transform) UpdateZoom(newZoom, anchorTime float64) float64 {
	limit := t.Limit(t.store.Snapshot().TotalDuration)
	z := t.Clamp(newZoom, limit)
	t.store.SetZoom(z, anchorTime)
	return z
}

// SetSlider applies a normalized slider position anchored on the playback time
func (t *Transform) SetSlider(v float64) float64 {
	snap := t.store.Snapshot()
	return t.UpdateZoom(ZoomFromSlider(v, t.Limit(snap.TotalDuration)), snap.PlaybackTime)
}

// ZoomIn shows Step times fewer seconds, anchored on the playback time
func (t *Transform) ZoomIn() float64 {
	snap := t.store.Snapshot()
	return t.UpdateZoom(snap.Zoom/t.opts.Step, snap.PlaybackTime)
}

// ZoomOut shows Step times more seconds, anchored on the playback time
func (t *Transform) ZoomOut() float64 {
	snap := t.store.Snapshot()
	return t.UpdateZoom(snap.Zoom*t.opts.Step, snap.PlaybackTime)
}

// Reset zooms fully out
func (t *Transform) Reset() float64 {
	snap := t.store.Snapshot()
	return t.UpdateZoom(t.Limit(snap.TotalDuration), snap.PlaybackTime)
}

// View derives the slider position and label from the snapshot's current zoom and limit
func (t *Transform) View(snap state.Snapshot) View {
	limit := t.Limit(snap.TotalDuration)
	return View{
		Seconds: snap.Zoom,
		Slider:  SliderValue(snap.Zoom, limit),
		Limit:   limit,
		Label:   Label(snap.Zoom),
	}
}

// SliderValue maps a visible duration to a slider position in [0, 1].
// A non-positive limit yields 0.
func SliderValue(zoom, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return lo.Clamp(1-zoom/limit, 0, 1)
}

// ZoomFromSlider maps a slider position to a visible duration
func ZoomFromSlider(v, limit float64) float64 {
	return (1 - lo.Clamp(v, 0, 1)) * limit
}

// Label is the tooltip text for a visible duration
func Label(zoom float64) string {
	return fmt.Sprintf("%.0f seconds visible", zoom)
}
