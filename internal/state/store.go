// Package state owns the mutable playback, zoom and frame state of one editor
// session. All writes go through narrow mutators so invariants hold centrally.
package state

import (
	"math"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

// Change flags which parts of the state a mutation touched
type Change uint8

const (
	ChangePlayback Change = 1 << iota
	ChangePreview
	ChangeZoom
	ChangeFrame
	ChangeTimeline
)

// Has reports whether any of the given flags are set
func (c Change) Has(flags Change) bool {
	return c&flags != 0
}

// Listener receives the snapshot produced by a mutation and what it changed
type Listener func(Snapshot, Change)

// Snapshot is an immutable copy of the store's state
type Snapshot struct {
	Playing       bool
	PlaybackTime  float64
	PreviewTime   mo.Option[float64]
	Zoom          float64
	ZoomAnchor    float64
	Segments      []timeline.Segment
	TotalDuration float64
	Frame         *frame.Frame
}

// DisplayTime is the preview time when one is set, otherwise the playback time, never negative
func (s Snapshot) DisplayTime() float64 {
	return math.Max(s.PreviewTime.OrElse(s.PlaybackTime), 0)
}

// CurrentSegment resolves the segment under the playback time
func (s Snapshot) CurrentSegment() *timeline.Segment {
	return timeline.CurrentSegment(s.Segments, s.PlaybackTime)
}

// Store is the single owner of session state. It is safe for concurrent use.
// Listeners run after the store's lock is released, on the mutating goroutine.
type Store struct {
	mu        sync.RWMutex
	snap      Snapshot
	frameSeq  uint64
	listeners map[int]Listener
	nextID    int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		snap:      Snapshot{PreviewTime: mo.None[float64]()},
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe registers fn for every subsequent change and returns its unsubscribe func
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetPlaying sets the playing flag. Entering playback clears any preview time.
func (s *Store) SetPlaying(playing bool) {
	s.update(func(st *Snapshot) Change {
		var change Change
		if st.Playing != playing {
			st.Playing = playing
			change |= ChangePlayback
		}
		if playing && st.PreviewTime.IsPresent() {
			st.PreviewTime = mo.None[float64]()
			change |= ChangePreview
		}
		return change
	})
}

// SetPlaybackTime moves the playhead, clamped to [0, total duration]
func (s *Store) SetPlaybackTime(t float64) {
	s.update(func(st *Snapshot) Change {
		t = clampTime(t, st.TotalDuration)
		if st.PlaybackTime == t {
			return 0
		}
		st.PlaybackTime = t
		return ChangePlayback
	})
}

// SetPreviewTime sets the scrub position, clamped to [0, total duration].
// It is ignored while playing.
func (s *Store) SetPreviewTime(t float64) bool {
	applied := false
	s.update(func(st *Snapshot) Change {
		if st.Playing {
			return 0
		}
		applied = true
		t = clampTime(t, st.TotalDuration)
		if v, ok := st.PreviewTime.Get(); ok && v == t {
			return 0
		}
		st.PreviewTime = mo.Some(t)
		return ChangePreview
	})
	return applied
}

// ClearPreviewTime drops the scrub position
func (s *Store) ClearPreviewTime() {
	s.update(func(st *Snapshot) Change {
		if st.PreviewTime.IsAbsent() {
			return 0
		}
		st.PreviewTime = mo.None[float64]()
		return ChangePreview
	})
}

// CommitPreview moves the playhead to the preview time and clears it.
// It returns the resulting playback time and whether a preview was committed.
func (s *Store) CommitPreview() (float64, bool) {
	var (
		committed bool
		result    float64
	)
	s.update(func(st *Snapshot) Change {
		result = st.PlaybackTime
		v, ok := st.PreviewTime.Get()
		if !ok {
			return 0
		}
		committed = true
		st.PreviewTime = mo.None[float64]()
		st.PlaybackTime = clampTime(v, st.TotalDuration)
		result = st.PlaybackTime
		return ChangePreview | ChangePlayback
	})
	return result, committed
}

// SetZoom stores the visible duration and the time it was anchored on.
// Bounds are enforced by the zoom transform.
func (s *Store) SetZoom(zoom, anchor float64) {
	s.update(func(st *Snapshot) Change {
		if st.Zoom == zoom && st.ZoomAnchor == anchor {
			return 0
		}
		st.Zoom = zoom
		st.ZoomAnchor = anchor
		return ChangeZoom
	})
}

// ReplaceFrame publishes f as the current frame with the next sequence number.
// The caller's frame is copied so its Seq is never mutated.
func (s *Store) ReplaceFrame(f *frame.Frame) *frame.Frame {
	if f == nil {
		return nil
	}
	var published *frame.Frame
	s.update(func(st *Snapshot) Change {
		s.frameSeq++
		cp := *f
		cp.Seq = s.frameSeq
		published = &cp
		st.Frame = published
		return ChangeFrame
	})
	return published
}

// SetTimeline replaces the segment list, recomputing the total duration and
// re-clamping the playhead and preview into the new range.
func (s *Store) SetTimeline(segments []timeline.Segment) {
	segs := slices.Clone(segments)
	total := timeline.TotalDuration(segs)
	s.update(func(st *Snapshot) Change {
		change := ChangeTimeline
		st.Segments = segs
		st.TotalDuration = total

		if t := clampTime(st.PlaybackTime, total); t != st.PlaybackTime {
			st.PlaybackTime = t
			change |= ChangePlayback
		}
		if v, ok := st.PreviewTime.Get(); ok {
			if t := clampTime(v, total); t != v {
				st.PreviewTime = mo.Some(t)
				change |= ChangePreview
			}
		}
		return change
	})
}

// StopIfPlaying atomically clears the playing flag when the store is playing and
// pred holds for the current state. It reports whether the flag was cleared, so
// concurrent callers observing the same condition act at most once.
func (s *Store) StopIfPlaying(pred func(Snapshot) bool) bool {
	stopped := false
	s.update(func(st *Snapshot) Change {
		if !st.Playing || !pred(*st) {
			return 0
		}
		st.Playing = false
		stopped = true
		return ChangePlayback
	})
	return stopped
}

// update applies fn under the write lock and notifies listeners when fn reports a change
func (s *Store) update(fn func(*Snapshot) Change) {
	s.mu.Lock()
	change := fn(&s.snap)
	if change == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snap
	ids := lo.Keys(s.listeners)
	slices.Sort(ids)
	listeners := lo.Map(ids, func(id int, _ int) Listener { return s.listeners[id] })
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap, change)
	}
}

func clampTime(t, total float64) float64 {
	if total <= 0 || math.IsNaN(t) {
		return 0
	}
	return lo.Clamp(t, 0, total)
}
