package timeline

import "errors"

var (
	// ErrEmptyTimeline is returned when a timeline has no segments or no output duration
	ErrEmptyTimeline = errors.New("timeline is empty")

	// ErrOutOfRange is returned when an instant lies outside [0, total duration)
	ErrOutOfRange = errors.New("time is outside the timeline")
)
