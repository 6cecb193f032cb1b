// Package timeline resolves output-timeline instants against an ordered list of
// speed-scaled segments and formats timeline values for display.
package timeline

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// TotalDuration sums the output duration of every segment
func TotalDuration(segments []Segment) float64 {
	return lo.SumBy(segments, Segment.Duration)
}

// CurrentSegment returns the segment whose output interval [start, start+duration)
// contains t. It returns nil for an empty list, for t before zero, and for any t at
// or after the end of the last segment, including t == TotalDuration.
//
// Performance: O(n) in the number of segments.
func CurrentSegment(segments []Segment, t float64) *Segment {
	pos, err := Locate(segments, t)
	if err != nil {
		return nil
	}
	seg := segments[pos.Index]
	return &seg
}

// CurrentSpeed returns the speed label for a segment, such as "0.50x".
// It is absent when there is no segment or the segment plays at normal speed.
func CurrentSpeed(segment *Segment) mo.Option[string] {
	if segment == nil || segment.Timescale == 1 || segment.Timescale <= 0 {
		return mo.None[string]()
	}
	return mo.Some(fmt.Sprintf("%.2fx", segment.Speed()))
}

// Locate finds the segment containing output time t and maps t into source-media time.
//
// Returns:
//   - Position: index, segment and offsets for t
//   - error: ErrEmptyTimeline when there is nothing to play, ErrOutOfRange otherwise
func Locate(segments []Segment, t float64) (Position, error) {
	if len(segments) == 0 {
		return Position{}, ErrEmptyTimeline
	}
	if t < 0 {
		return Position{}, ErrOutOfRange
	}

	var accumulated float64
	for i, seg := range segments {
		d := seg.Duration()
		if t < accumulated+d {
			offset := t - accumulated
			return Position{
				Index:       i,
				Segment:     seg,
				OutputStart: accumulated,
				Offset:      offset,
				SourceTime:  seg.Start + offset*seg.Timescale,
			}, nil
		}
		accumulated += d
	}

	if accumulated == 0 {
		return Position{}, ErrEmptyTimeline
	}
	return Position{}, ErrOutOfRange
}

// FrameTime converts a frame index at fps into output seconds
func FrameTime(frame int64, fps int) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frame) / float64(fps)
}

// FrameIndex converts output seconds into the frame index shown at that instant
func FrameIndex(seconds float64, fps int) int64 {
	if seconds <= 0 || fps <= 0 {
		return 0
	}
	return int64(seconds * float64(fps))
}
