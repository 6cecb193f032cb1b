package backend

import (
	"context"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

// segmentPalette colours synthetic frames by segment index
var segmentPalette = []color.RGBA{
	{R: 0xd9, G: 0x48, B: 0x3b, A: 0xff},
	{R: 0x3b, G: 0x82, B: 0xd9, A: 0xff},
	{R: 0x4c, G: 0xb0, B: 0x5a, A: 0xff},
	{R: 0xe0, G: 0xa8, B: 0x2e, A: 0xff},
}

// Synthetic is a backend that renders a solid test pattern per segment with a
// progress bar along the bottom edge. It needs no external tools.
type Synthetic struct {
	*player
}

// NewSynthetic creates a synthetic backend delivering to sink
func NewSynthetic(sink Sink) *Synthetic {
	return &Synthetic{player: newPlayer("synthetic", syntheticSource{}, sink)}
}

type syntheticSource struct{}

func (syntheticSource) open(_ context.Context, pos timeline.Position, fps int, size frame.Size) (frameReader, error) {
	remaining := int(math.Ceil(pos.Remaining() * float64(fps)))
	return &syntheticReader{
		pos:       pos,
		fps:       fps,
		size:      size,
		remaining: remaining,
		fill:      segmentPalette[pos.Index%len(segmentPalette)],
	}, nil
}

type syntheticReader struct {
	pos       timeline.Position
	fps       int
	size      frame.Size
	remaining int
	emitted   int
	fill      color.RGBA
}

func (r *syntheticReader) Next() (*image.RGBA, error) {
	if r.emitted >= r.remaining {
		return nil, io.EOF
	}

	img := image.NewRGBA(image.Rect(0, 0, r.size.Width, r.size.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r.fill.R
		img.Pix[i+1] = r.fill.G
		img.Pix[i+2] = r.fill.B
		img.Pix[i+3] = r.fill.A
	}

	// progress bar through the segment
	done := float64(r.emitted) / float64(max(r.remaining, 1))
	barWidth := int(done * float64(r.size.Width))
	barTop := r.size.Height - max(r.size.Height/20, 1)
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	for y := barTop; y < r.size.Height; y++ {
		for x := 0; x < barWidth; x++ {
			img.SetRGBA(x, y, white)
		}
	}

	r.emitted++
	return img, nil
}

func (r *syntheticReader) Close() error {
	return nil
}
