package presenter

import (
	"sync"

	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/state"
)

// Surface receives geometry and pixel updates
type Surface interface {
	// Resize is called when the render rect changes
	Resize(r Rect)
	// Draw is called once for every new frame
	Draw(f *frame.Frame) error
}

// Presenter follows the store's frame and the viewport bounds, resizing the
// surface on geometry changes and drawing on frame changes only.
type Presenter struct {
	mu          sync.Mutex
	surface     Surface
	padding     float64
	bounds      Bounds
	frame       *frame.Frame
	rect        Rect
	sized       bool
	drawn       uint64
	unsubscribe func()
}

// New creates a presenter drawing store frames onto surface
func New(store *state.Store, surface Surface, padding float64) *Presenter {
	p := &Presenter{surface: surface, padding: padding}
	p.unsubscribe = store.Subscribe(func(snap state.Snapshot, change state.Change) {
		if change.Has(state.ChangeFrame) {
			p.present(snap.Frame)
		}
	})
	if f := store.Snapshot().Frame; f != nil {
		p.present(f)
	}
	return p
}

// Close stops following the store
func (p *Presenter) Close() {
	p.unsubscribe()
}

// SetBounds records newly measured viewport bounds
func (p *Presenter) SetBounds(b Bounds) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bounds = b
	p.relayoutLocked()
}

// Bounds returns the last measured viewport bounds
func (p *Presenter) Bounds() Bounds {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bounds
}

// Layout returns the current render rect. It is not ok until a frame has
// arrived and the bounds are known.
func (p *Presenter) Layout() (Rect, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rect, p.sized
}

func (p *Presenter) present(f *frame.Frame) {
	if f == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if f.Seq != 0 && f.Seq <= p.drawn {
		return
	}
	p.frame = f
	p.drawn = f.Seq
	p.relayoutLocked()

	if err := p.surface.Draw(f); err != nil {
		logger.Log.Warn().
			Err(err).
			Uint64("seq", f.Seq).
			Msg("Failed to draw frame")
	}
}

// relayoutLocked recomputes geometry and resizes the surface only when the rect changed
func (p *Presenter) relayoutLocked() {
	if p.frame == nil || !p.bounds.Known() {
		p.sized = false
		return
	}

	r := Fit(p.bounds, p.frame.Aspect(), p.padding)
	if p.sized && r == p.rect {
		return
	}
	p.rect = r
	p.sized = true
	p.surface.Resize(r)
}
