// Package presenter computes aspect-preserving render geometry for the viewport
// and pushes each new frame to a drawing surface exactly once.
package presenter

// DefaultPadding is the inset kept between the viewport edge and the frame
const DefaultPadding = 4

// Bounds are the measured viewport dimensions; zero means not measured yet
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Known reports whether the bounds have been measured
func (b Bounds) Known() bool {
	return b.Width > 0 && b.Height > 0
}

// Rect is the size the frame is drawn at
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rect has no drawable area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Fit sizes a frame of the given aspect ratio inside bounds minus padding.
// Frames relatively taller than the container are bound by height, with the
// height reduced by a single padding; all others are bound by width, reduced by
// padding on both sides. Unmeasured bounds compare against an aspect of 1.
// Negative results are clamped to zero.
func Fit(bounds Bounds, frameAspect, padding float64) Rect {
	containerAspect := 1.0
	if bounds.Known() {
		innerH := bounds.Height - 2*padding
		if innerH > 0 {
			containerAspect = (bounds.Width - 2*padding) / innerH
		}
	}

	var r Rect
	if frameAspect < containerAspect {
		r.Height = bounds.Height - padding
		r.Width = r.Height * frameAspect
	} else {
		r.Width = bounds.Width - 2*padding
		if frameAspect > 0 {
			r.Height = r.Width / frameAspect
		}
	}

	return Rect{Width: max(r.Width, 0), Height: max(r.Height, 0)}
}
