package playback

import (
	"sync"

	"github.com/rs/zerolog"
)

const defaultReportHistory = 50

// Reporter receives backend failures. Failures are surfaced, never retried.
type Reporter interface {
	Report(err *CommandError)
}

// LogReporter logs failures and keeps the most recent ones for diagnostics
type LogReporter struct {
	log     zerolog.Logger
	mu      sync.Mutex
	history []*CommandError
	limit   int
	total   uint64
}

// NewLogReporter creates a reporter that keeps up to limit recent failures.
// A non-positive limit uses the default.
func NewLogReporter(log zerolog.Logger, limit int) *LogReporter {
	if limit <= 0 {
		limit = defaultReportHistory
	}
	return &LogReporter{log: log, limit: limit}
}

// Report implements Reporter
func (r *LogReporter) Report(err *CommandError) {
	if err == nil {
		return
	}

	r.log.Error().
		Err(err.Err).
		Str("action", err.Action).
		Str("op", err.Op).
		Msg("Playback command failed")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.history = append(r.history, err)
	if len(r.history) > r.limit {
		r.history = r.history[len(r.history)-r.limit:]
	}
}

// Recent returns the retained failures, oldest first
func (r *LogReporter) Recent() []*CommandError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*CommandError, len(r.history))
	copy(out, r.history)
	return out
}

// Total returns how many failures were reported over the reporter's lifetime
func (r *LogReporter) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
