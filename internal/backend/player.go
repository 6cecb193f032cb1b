// Package backend implements decode backends for the playback controller: an
// ffmpeg-driven decoder and a synthetic test-pattern source.
package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"sync"
	"time"

	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

// Player errors
var (
	ErrEmptyTimeline = errors.New("timeline has nothing to play")
	ErrInvalidFPS    = errors.New("fps must be positive")
	ErrInvalidSize   = errors.New("output size must be positive")
)

// Sink receives what a running backend produces
type Sink interface {
	// PushFrame delivers a decoded frame; it must not block
	PushFrame(f *frame.Frame)
	// Progress reports the output-timeline time of the frame just delivered
	Progress(t float64)
	// Failed reports that playback stopped because decoding failed
	Failed(err error)
}

// frameReader yields decoded frames for one segment
type frameReader interface {
	// Next returns the next frame, or io.EOF once the segment is exhausted
	Next() (*image.RGBA, error)
	Close() error
}

// frameSource opens readers positioned inside a segment
type frameSource interface {
	open(ctx context.Context, pos timeline.Position, fps int, size frame.Size) (frameReader, error)
}

// player holds the seek position and timeline and runs one playback loop at a time.
// Frames are paced at the requested fps.
type player struct {
	name   string
	source frameSource
	sink   Sink

	mu       sync.Mutex
	segments []timeline.Segment
	seekTo   int64
	cancel   context.CancelFunc
	done     chan struct{}
}

func newPlayer(name string, source frameSource, sink Sink) *player {
	return &player{name: name, source: source, sink: sink}
}

// SetTimeline replaces the segments played by subsequent starts
func (p *player) SetTimeline(segments []timeline.Segment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.segments = append([]timeline.Segment(nil), segments...)
}

// SeekTo records the frame the next start begins at
func (p *player) SeekTo(_ context.Context, frameIndex int64) error {
	if frameIndex < 0 {
		return fmt.Errorf("invalid frame index %d", frameIndex)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekTo = frameIndex
	return nil
}

// StartPlayback opens the first segment synchronously so that start failures are
// returned to the caller, then streams the rest in the background.
func (p *player) StartPlayback(ctx context.Context, fps int, size frame.Size) error {
	if fps <= 0 {
		return ErrInvalidFPS
	}
	if !size.Valid() {
		return ErrInvalidSize
	}

	if err := p.StopPlayback(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	segments := p.segments
	start := timeline.FrameTime(p.seekTo, fps)
	p.mu.Unlock()

	total := timeline.TotalDuration(segments)
	if total <= 0 {
		return ErrEmptyTimeline
	}
	start = math.Min(start, total)

	runCtx, cancel := context.WithCancel(context.Background())
	var first frameReader
	var firstPos timeline.Position
	if start < total {
		pos, err := timeline.Locate(segments, start)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to locate start position: %w", err)
		}
		reader, err := p.source.open(runCtx, pos, fps, size)
		if err != nil {
			cancel()
			return err
		}
		first, firstPos = reader, pos
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	logger.Log.Info().
		Str("backend", p.name).
		Float64("start", start).
		Float64("total", total).
		Int("fps", fps).
		Int("width", size.Width).
		Int("height", size.Height).
		Msg("Playback started")

	go p.run(runCtx, done, segments, total, first, firstPos, fps, size)
	return nil
}

// StopPlayback cancels the running loop and waits for it to exit. It is a no-op when stopped.
func (p *player) StopPlayback(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		logger.Log.Debug().Str("backend", p.name).Msg("Playback stopped")
		return nil
	case <-ctx.Done():
		return NewDecodeError(ErrorTypeTimeout, "playback loop did not stop in time", ctx.Err())
	}
}

// Running reports whether a playback loop is active
func (p *player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

func (p *player) run(ctx context.Context, done chan struct{}, segments []timeline.Segment, total float64,
	reader frameReader, pos timeline.Position, fps int, size frame.Size) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for reader != nil {
		next, err := p.playSegment(ctx, ticker, reader, pos, fps)
		if closeErr := reader.Close(); err == nil && closeErr != nil && ctx.Err() == nil {
			err = closeErr
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.fail(err)
			return
		}

		reader = nil
		if next >= total {
			break
		}
		pos, err = timeline.Locate(segments, next)
		if err != nil {
			break
		}
		reader, err = p.source.open(ctx, pos, fps, size)
		if err != nil {
			if ctx.Err() == nil {
				p.fail(err)
			}
			return
		}
	}

	p.sink.Progress(total)
}

// playSegment paces frames from reader and returns where the next segment begins
func (p *player) playSegment(ctx context.Context, ticker *time.Ticker, reader frameReader, pos timeline.Position, fps int) (float64, error) {
	t := pos.OutputStart + pos.Offset
	end := pos.OutputStart + pos.Segment.Duration()
	step := 1 / float64(fps)

	for t < end {
		select {
		case <-ctx.Done():
			return t, nil
		case <-ticker.C:
		}

		img, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return t, err
		}

		p.sink.PushFrame(frame.New(img))
		p.sink.Progress(t)
		t += step
	}
	return end, nil
}

func (p *player) fail(err error) {
	logger.Log.Error().
		Err(err).
		Str("backend", p.name).
		Msg("Playback loop failed")
	p.sink.Failed(err)
}
