package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/stwalsh4118/cutroom/internal/frame"
	"github.com/stwalsh4118/cutroom/internal/logger"
	"github.com/stwalsh4118/cutroom/internal/timeline"
)

// FFmpegOptions configures the ffmpeg decoder
type FFmpegOptions struct {
	Binary  string
	HWAccel HWAccel
}

// FFmpegDecoder plays a project's source through one ffmpeg process per segment
type FFmpegDecoder struct {
	*player
	source *ffmpegSource
}

// NewFFmpegDecoder creates a decoder for the media at sourcePath delivering to sink
func NewFFmpegDecoder(sourcePath string, opts FFmpegOptions, sink Sink) *FFmpegDecoder {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	src := &ffmpegSource{path: sourcePath, opts: opts}
	return &FFmpegDecoder{
		player: newPlayer("ffmpeg", src, sink),
		source: src,
	}
}

// SetSource points the decoder at different media for subsequent starts
func (d *FFmpegDecoder) SetSource(path string) {
	d.source.mu.Lock()
	defer d.source.mu.Unlock()
	d.source.path = path
}

type ffmpegSource struct {
	mu   sync.Mutex
	path string
	opts FFmpegOptions
}

func (s *ffmpegSource) open(ctx context.Context, pos timeline.Position, fps int, size frame.Size) (frameReader, error) {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	cmd, err := BuildDecodeCommand(DecodeParams{
		InputFile:  path,
		SeekSource: pos.SourceTime,
		Duration:   pos.Segment.End - pos.SourceTime,
		Timescale:  pos.Segment.Timescale,
		FPS:        fps,
		Size:       size,
		HWAccel:    s.opts.HWAccel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decode command: %w", err)
	}

	proc, err := launchFFmpeg(ctx, s.opts.Binary, cmd)
	if err != nil {
		return nil, err
	}

	logger.Log.Debug().
		Int("segment", pos.Index).
		Float64("source_time", pos.SourceTime).
		Float64("timescale", pos.Segment.Timescale).
		Msg("Decoding segment")

	return &ffmpegReader{proc: proc, size: size}, nil
}

// ffmpegReader reads fixed-size rgba frames from ffmpeg's stdout
type ffmpegReader struct {
	proc   *ffmpegProcess
	size   frame.Size
	frames int
}

func (r *ffmpegReader) Next() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.size.Width, r.size.Height))
	_, err := io.ReadFull(r.proc.stdout, img.Pix)
	switch {
	case err == nil:
		r.frames++
		return img, nil
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		// a decoder that produced nothing failed rather than finished
		if r.frames == 0 {
			if exitErr := r.proc.exitError(<-r.proc.wait()); exitErr != nil {
				return nil, exitErr
			}
		}
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
}

func (r *ffmpegReader) Close() error {
	return r.proc.terminate()
}
