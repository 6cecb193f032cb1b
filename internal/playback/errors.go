package playback

import (
	"errors"
	"fmt"
	"time"
)

// Control action names used in reports and logs
const (
	ActionPlay        = "play"
	ActionToggle      = "toggle"
	ActionSkipToStart = "skip_to_start"
	ActionSkipToEnd   = "skip_to_end"
	ActionAutoStop    = "auto_stop"
	ActionPlayback    = "playback"
	ActionStop        = "stop"
	ActionReload      = "reload"
)

// Backend operation names
const (
	OpSeek   = "seek"
	OpStart  = "start"
	OpStop   = "stop"
	OpDecode = "decode"
)

// ErrClosed is returned by actions issued after the controller was closed
var ErrClosed = errors.New("playback controller is closed")

// CommandError records a failed backend call made on behalf of a control action
type CommandError struct {
	Action string
	Op     string
	Err    error
	At     time.Time
}

// Error implements the error interface
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: backend %s failed: %v", e.Action, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsCommandError reports whether err came from a failed backend call
func IsCommandError(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr)
}
