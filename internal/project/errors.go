package project

import "errors"

// Project service errors
var (
	// ErrProjectNotFound indicates the requested project does not exist
	ErrProjectNotFound = errors.New("project not found")

	// ErrDuplicateName indicates a project with the same name already exists
	ErrDuplicateName = errors.New("project name already exists")

	// ErrEmptyName indicates the project name is blank
	ErrEmptyName = errors.New("project name cannot be empty")

	// ErrInvalidSegment indicates a segment with a non-positive span or timescale
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrProbeUnavailable indicates source details were missing and no prober is configured
	ErrProbeUnavailable = errors.New("source details missing and probing is unavailable")
)

// IsNotFound checks if the error is a project not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound)
}

// IsValidation checks if the error was caused by invalid caller input
func IsValidation(err error) bool {
	return errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrInvalidSegment)
}
