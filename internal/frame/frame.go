// Package frame defines decoded video frames and the single-slot mailbox that
// carries them from a decode backend to the presenter.
package frame

import "image"

// Size is an output resolution in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both dimensions are positive
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Frame is one decoded picture. Frames are immutable once published.
type Frame struct {
	Width  int
	Height int
	Data   *image.RGBA
	// Seq orders frames as they were accepted by the state store; 0 means unpublished
	Seq uint64
}

// New wraps an RGBA buffer as a frame of its own dimensions
func New(data *image.RGBA) *Frame {
	b := data.Bounds()
	return &Frame{Width: b.Dx(), Height: b.Dy(), Data: data}
}

// DataHeight is the pixel buffer's own height, which may differ from Height
// when the backend pads rows.
func (f *Frame) DataHeight() int {
	if f.Data == nil {
		return f.Height
	}
	return f.Data.Bounds().Dy()
}

// Aspect is the width-to-height ratio used for layout, measured against the buffer height
func (f *Frame) Aspect() float64 {
	h := f.DataHeight()
	if h <= 0 {
		return 0
	}
	return float64(f.Width) / float64(h)
}
