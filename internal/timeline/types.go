package timeline

import "github.com/stwalsh4118/cutroom/internal/models"

// Segment is a slice of source media mapped onto the output timeline.
// Start and End are source-media seconds. Timescale is the playback-speed divisor:
// the segment contributes (End-Start)/Timescale seconds of output.
type Segment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Timescale float64 `json:"timescale"`
}

// Duration returns the segment's length on the output timeline.
// Segments with a non-positive timescale contribute nothing.
func (s Segment) Duration() float64 {
	if s.Timescale <= 0 || s.End <= s.Start {
		return 0
	}
	return (s.End - s.Start) / s.Timescale
}

// Speed is the effective playback rate shown to the user
func (s Segment) Speed() float64 {
	return 1 / s.Timescale
}

// Position locates an output-timeline instant inside the segment list
type Position struct {
	// Index of the segment containing the instant
	Index int `json:"index"`

	Segment Segment `json:"segment"`

	// OutputStart is where the segment begins on the output timeline
	OutputStart float64 `json:"output_start"`

	// Offset is the output-timeline distance from OutputStart
	Offset float64 `json:"offset"`

	// SourceTime is the matching instant in the source media
	SourceTime float64 `json:"source_time"`
}

// Remaining returns the output seconds left in the located segment
func (p Position) Remaining() float64 {
	return p.Segment.Duration() - p.Offset
}

// FromModels converts persisted segments into timeline segments, preserving order
func FromModels(segments []*models.Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s == nil {
			continue
		}
		out = append(out, Segment{Start: s.Start, End: s.End, Timescale: s.Timescale})
	}
	return out
}
