package backend

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stwalsh4118/cutroom/internal/frame"
)

// Command build errors
var (
	ErrEmptyInputFile   = errors.New("input file cannot be empty")
	ErrInvalidTimescale = errors.New("timescale must be positive")
	ErrInvalidDuration  = errors.New("decode duration must be positive")
)

// DecodeParams describes one ffmpeg decode of a segment slice to raw RGBA frames
type DecodeParams struct {
	InputFile  string     // Path to the source media
	SeekSource float64    // Source-media seconds to start at
	Duration   float64    // Source-media seconds to decode
	Timescale  float64    // Output duration divisor of the segment
	FPS        int        // Output frame rate
	Size       frame.Size // Output resolution
	HWAccel    HWAccel    // Hardware decode method, none for software
}

// FFmpegCommand represents a built FFmpeg command
type FFmpegCommand struct {
	Args []string // Command arguments (without "ffmpeg" itself)
}

// BuildDecodeCommand builds the ffmpeg arguments that decode a slice of the
// source, retime it by the segment's timescale and write rgba frames to stdout.
func BuildDecodeCommand(params DecodeParams) (*FFmpegCommand, error) {
	if err := validateDecodeParams(params); err != nil {
		return nil, err
	}

	args := make([]string, 0, 24)
	args = append(args, "-hide_banner", "-loglevel", "error", "-nostdin")
	args = append(args, buildInputArgs(params)...)
	args = append(args, "-an", "-vf", buildFilter(params))
	args = append(args, buildOutputArgs(params)...)

	return &FFmpegCommand{Args: args}, nil
}

func validateDecodeParams(params DecodeParams) error {
	if params.InputFile == "" {
		return ErrEmptyInputFile
	}
	if params.Timescale <= 0 {
		return ErrInvalidTimescale
	}
	if params.Duration <= 0 {
		return ErrInvalidDuration
	}
	if params.FPS <= 0 {
		return ErrInvalidFPS
	}
	if !params.Size.Valid() {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, params.Size.Width, params.Size.Height)
	}
	return nil
}

// buildInputArgs builds input-related arguments; seeking goes before -i for fast seek
func buildInputArgs(params DecodeParams) []string {
	args := make([]string, 0, 8)
	if params.HWAccel.enabled() {
		args = append(args, "-hwaccel", params.HWAccel.String())
	}
	if params.SeekSource > 0 {
		args = append(args, "-ss", formatSeconds(params.SeekSource))
	}
	args = append(args, "-t", formatSeconds(params.Duration))
	args = append(args, "-i", params.InputFile)
	return args
}

// buildFilter retimes by 1/timescale and scales to the output size
func buildFilter(params DecodeParams) string {
	return fmt.Sprintf("setpts=%s*PTS,scale=%d:%d",
		strconv.FormatFloat(1/params.Timescale, 'f', -1, 64),
		params.Size.Width, params.Size.Height)
}

func buildOutputArgs(params DecodeParams) []string {
	return []string{
		"-r", strconv.Itoa(params.FPS),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
