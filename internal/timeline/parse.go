package timeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSegmentList is returned when a segment list string cannot be parsed
var ErrInvalidSegmentList = errors.New("invalid segment list")

// ParseSegments reads a comma-separated list of start:end[:timescale] triples,
// for example "0:30,40:50:2". The timescale defaults to 1.
func ParseSegments(s string) ([]Segment, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	items := strings.Split(s, ",")
	segments := make([]Segment, 0, len(items))
	for i, item := range items {
		fields := strings.Split(strings.TrimSpace(item), ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%w: segment %d %q needs start:end[:timescale]", ErrInvalidSegmentList, i, item)
		}

		values := []float64{0, 0, 1}
		for j, field := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: segment %d: %v", ErrInvalidSegmentList, i, err)
			}
			values[j] = v
		}

		seg := Segment{Start: values[0], End: values[1], Timescale: values[2]}
		if seg.End <= seg.Start || seg.Timescale <= 0 {
			return nil, fmt.Errorf("%w: segment %d needs end > start and timescale > 0", ErrInvalidSegmentList, i)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
