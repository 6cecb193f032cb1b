package presenter

import (
	"errors"
	"image/jpeg"
	"image/png"
	"io"
	"sync"

	"github.com/stwalsh4118/cutroom/internal/frame"
)

// ErrNoFrame is returned when encoding a surface that has not drawn anything
var ErrNoFrame = errors.New("no frame has been drawn")

// MemorySurface keeps the last drawn frame and rect so it can be served to clients
type MemorySurface struct {
	mu      sync.RWMutex
	frame   *frame.Frame
	rect    Rect
	draws   uint64
	resizes uint64
	onDraw  func(*frame.Frame, Rect)
}

// NewMemorySurface creates an empty surface
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

// OnDraw registers a callback invoked after every draw with the frame and current rect
func (s *MemorySurface) OnDraw(fn func(*frame.Frame, Rect)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDraw = fn
}

// Resize implements Surface
func (s *MemorySurface) Resize(r Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rect = r
	s.resizes++
}

// Draw implements Surface
func (s *MemorySurface) Draw(f *frame.Frame) error {
	if f == nil || f.Data == nil {
		return ErrNoFrame
	}

	s.mu.Lock()
	s.frame = f
	s.draws++
	cb, rect := s.onDraw, s.rect
	s.mu.Unlock()

	if cb != nil {
		cb(f, rect)
	}
	return nil
}

// Frame returns the last drawn frame and the rect it is shown at
func (s *MemorySurface) Frame() (*frame.Frame, Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.rect, s.frame != nil
}

// Counts returns how many draws and resizes the surface received
func (s *MemorySurface) Counts() (draws, resizes uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draws, s.resizes
}

// EncodePNG writes the last drawn frame as PNG
func (s *MemorySurface) EncodePNG(w io.Writer) error {
	f, _, ok := s.Frame()
	if !ok {
		return ErrNoFrame
	}
	return png.Encode(w, f.Data)
}

// EncodeJPEG writes the last drawn frame as JPEG at the given quality
func (s *MemorySurface) EncodeJPEG(w io.Writer, quality int) error {
	f, _, ok := s.Frame()
	if !ok {
		return ErrNoFrame
	}
	return EncodeJPEG(w, f, quality)
}

// EncodeJPEG writes f as JPEG at the given quality
func EncodeJPEG(w io.Writer, f *frame.Frame, quality int) error {
	if f == nil || f.Data == nil {
		return ErrNoFrame
	}
	return jpeg.Encode(w, f.Data, &jpeg.Options{Quality: quality})
}
