package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/playback"
)

// BreakerState is where a decode breaker sits between healthy and tripped
type BreakerState string

const (
	// BreakerClosed lets every seek and start through
	BreakerClosed BreakerState = "closed"
	// BreakerOpen fails seeks and starts without touching the decoder
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen lets one attempt through after the cooldown
	BreakerHalfOpen BreakerState = "half_open"
)

// ErrCircuitOpen is returned while the decoder is considered down
var ErrCircuitOpen = errors.New("decoder circuit is open")

// CircuitBreaker trips after a run of consecutive decoder failures so that a
// broken source or missing binary is not respawned on every key press. It
// counts synchronous seek and start failures plus failures the playback loop
// reports on its own. It never retries.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
}

// NewCircuitBreaker trips after threshold consecutive failures and probes
// again once cooldown has passed
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     BreakerClosed,
	}
}

// Call runs fn unless the breaker is open and records the outcome
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		cb.RecordFailure(err)
		return err
	}
	cb.recordSuccess()
	return nil
}

// RecordFailure counts a decoder failure. A failed half-open probe reopens
// the breaker immediately.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == BreakerHalfOpen || cb.failures >= cb.threshold {
		cb.openedAt = cb.now()
		cb.transitionLocked(BreakerOpen, err)
	}
}

// State reports the breaker state, moving open to half-open once the
// cooldown has elapsed
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.coolLocked()
	return cb.state
}

// Failures returns the consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.coolLocked()
	if cb.state != BreakerOpen {
		return nil
	}
	retryIn := cb.cooldown - cb.now().Sub(cb.openedAt)
	return fmt.Errorf("%w: retry in %s", ErrCircuitOpen, retryIn.Round(time.Millisecond))
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != BreakerClosed {
		cb.transitionLocked(BreakerClosed, nil)
	}
}

func (cb *CircuitBreaker) coolLocked() {
	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		cb.failures = 0
		cb.transitionLocked(BreakerHalfOpen, nil)
	}
}

func (cb *CircuitBreaker) transitionLocked(to BreakerState, cause error) {
	if cb.state == to {
		return
	}
	event := logger.Log.Info()
	if to == BreakerOpen {
		event = logger.Log.Warn().Err(cause).Dur("cooldown", cb.cooldown)
	}
	event.
		Str("from", string(cb.state)).
		Str("to", string(to)).
		Int("failures", cb.failures).
		Msg("Decoder circuit state changed")
	cb.state = to
}

// Guarded wraps a backend so seek and start fail fast while the breaker is open.
// Stop always reaches the backend.
type Guarded struct {
	inner   playback.Backend
	breaker *CircuitBreaker
}

// Guard wraps inner with breaker
func Guard(inner playback.Backend, breaker *CircuitBreaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

// Breaker returns the guarding circuit breaker
func (g *Guarded) Breaker() *CircuitBreaker {
	return g.breaker
}

// SeekTo implements playback.Backend
func (g *Guarded) SeekTo(ctx context.Context, frameIndex int64) error {
	return g.breaker.Call(func() error { return g.inner.SeekTo(ctx, frameIndex) })
}

// StartPlayback implements playback.Backend
func (g *Guarded) StartPlayback(ctx context.Context, fps int, size frame.Size) error {
	return g.breaker.Call(func() error { return g.inner.StartPlayback(ctx, fps, size) })
}

// StopPlayback implements playback.Backend
func (g *Guarded) StopPlayback(ctx context.Context) error {
	return g.inner.StopPlayback(ctx)
}
