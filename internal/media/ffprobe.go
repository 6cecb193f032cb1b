// Package media probes source video files with ffprobe.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/cutroom/internal/logger"
)

// Timeout for FFprobe execution
const ffprobeTimeout = 30 * time.Second

// Common errors
var (
	ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")
	ErrFileNotFound    = errors.New("file not found or not readable")
	ErrInvalidFile     = errors.New("invalid or corrupted video file")
	ErrNoVideoStream   = errors.New("file has no video stream")
	ErrTimeout         = errors.New("ffprobe execution timed out")
)

// FFprobeResult represents the top-level JSON output from FFprobe
type FFprobeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream represents a single stream in the probed file
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"` // "video" or "audio"
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Duration     string `json:"duration,omitempty"`
	AvgFrameRate string `json:"avg_frame_rate,omitempty"` // e.g. "30000/1001"
	RFrameRate   string `json:"r_frame_rate,omitempty"`
}

// Format represents the container information
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// SourceInfo is what the editor needs to know about a source file
type SourceInfo struct {
	Duration   float64 // seconds
	Width      int
	Height     int
	FrameRate  float64
	VideoCodec string
}

// Prober reads source information from a media file
type Prober interface {
	Probe(ctx context.Context, path string) (*SourceInfo, error)
}

// FFprobe probes files with the ffprobe binary
type FFprobe struct {
	Binary string
}

// NewFFprobe creates a prober using binary, or "ffprobe" from PATH when empty
func NewFFprobe(binary string) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{Binary: binary}
}

// CheckInstalled checks if the ffprobe binary is available
func (p *FFprobe) CheckInstalled() error {
	if _, err := exec.LookPath(p.Binary); err != nil {
		return ErrFFprobeNotFound
	}
	return nil
}

// Probe executes ffprobe on the given file and returns its source information
func (p *FFprobe) Probe(ctx context.Context, filePath string) (*SourceInfo, error) {
	if err := p.CheckInstalled(); err != nil {
		return nil, err
	}

	logger.Log.Debug().
		Str("file_path", filePath).
		Msg("Probing source file with FFprobe")

	ctx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		p.Binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Log.Error().
				Str("file_path", filePath).
				Msg("FFprobe execution timed out")
			return nil, ErrTimeout
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			logger.Log.Error().
				Str("file_path", filePath).
				Str("stderr", stderr).
				Msg("FFprobe execution failed")
			if strings.Contains(strings.ToLower(stderr), "no such file") {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, stderr)
			}
			return nil, fmt.Errorf("%w: %s", ErrInvalidFile, stderr)
		}

		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	info, err := ParseOutput(output)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("file_path", filePath).
			Msg("Failed to read FFprobe output")
		return nil, err
	}

	logger.Log.Info().
		Str("file_path", filePath).
		Float64("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("frame_rate", info.FrameRate).
		Str("video_codec", info.VideoCodec).
		Msg("Probed source file")

	return info, nil
}

// ParseOutput decodes ffprobe JSON output into SourceInfo
func ParseOutput(output []byte) (*SourceInfo, error) {
	var result FFprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return extractSourceInfo(&result)
}

// extractSourceInfo picks the first video stream and falls back to the container duration
func extractSourceInfo(result *FFprobeResult) (*SourceInfo, error) {
	var video *Stream
	for i := range result.Streams {
		if result.Streams[i].CodecType == "video" {
			video = &result.Streams[i]
			break
		}
	}
	if video == nil {
		return nil, ErrNoVideoStream
	}

	info := &SourceInfo{
		Width:      video.Width,
		Height:     video.Height,
		VideoCodec: video.CodecName,
		FrameRate:  parseRate(video.AvgFrameRate),
	}
	if info.FrameRate == 0 {
		info.FrameRate = parseRate(video.RFrameRate)
	}

	info.Duration = parseSeconds(video.Duration)
	if info.Duration == 0 {
		info.Duration = parseSeconds(result.Format.Duration)
	}

	if info.Duration <= 0 {
		return nil, fmt.Errorf("%w: could not determine video duration", ErrInvalidFile)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: could not determine video dimensions", ErrInvalidFile)
	}

	return info, nil
}

func parseSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// parseRate parses ffprobe rationals such as "30000/1001"; "0/0" yields 0
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseSeconds(s)
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
