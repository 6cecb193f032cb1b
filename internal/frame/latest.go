package frame

import "sync"

// Latest is a single-slot mailbox: each Offer replaces any frame not yet taken.
// Producers never block and consumers only ever see the newest frame.
type Latest struct {
	mu       sync.Mutex
	frame    *Frame
	ready    chan struct{}
	dropped  uint64
	accepted uint64
}

// NewLatest creates an empty mailbox
func NewLatest() *Latest {
	return &Latest{ready: make(chan struct{}, 1)}
}

// Offer stores f, superseding any unread frame
func (l *Latest) Offer(f *Frame) {
	if f == nil {
		return
	}

	l.mu.Lock()
	if l.frame != nil {
		l.dropped++
	}
	l.frame = f
	l.accepted++
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Take removes and returns the pending frame, if any
func (l *Latest) Take() (*Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.frame
	l.frame = nil
	return f, f != nil
}

// Ready is signalled after an Offer; a signal may cover several offers
func (l *Latest) Ready() <-chan struct{} {
	return l.ready
}

// Stats returns how many frames were offered and how many were superseded unread
func (l *Latest) Stats() (accepted, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accepted, l.dropped
}
