package backend

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/stwalsh4118/cutroom/internal/logger"
)

const hwaccelDetectTimeout = 10 * time.Second

// HWAccel is an ffmpeg hardware decode method
type HWAccel string

// Hardware decode methods
const (
	HWAccelNone         HWAccel = "none"
	HWAccelAuto         HWAccel = "auto"
	HWAccelCUDA         HWAccel = "cuda"
	HWAccelQSV          HWAccel = "qsv"
	HWAccelVAAPI        HWAccel = "vaapi"
	HWAccelVideoToolbox HWAccel = "videotoolbox"
)

// hwaccelPriority orders methods from most to least preferred
var hwaccelPriority = []HWAccel{HWAccelCUDA, HWAccelQSV, HWAccelVideoToolbox, HWAccelVAAPI}

// Detection errors
var (
	ErrFFmpegNotFound = errors.New("ffmpeg not found")
	ErrDetectTimeout  = errors.New("hwaccel detection timed out")
	ErrHWAccelMissing = errors.New("hwaccel method not available")
	ErrUnknownHWAccel = errors.New("unknown hwaccel method")
)

// String returns the method name
func (h HWAccel) String() string {
	return string(h)
}

// IsValid reports whether h is a known method
func (h HWAccel) IsValid() bool {
	return h == HWAccelNone || h == HWAccelAuto || slices.Contains(hwaccelPriority, h)
}

// enabled reports whether h asks ffmpeg for hardware decoding
func (h HWAccel) enabled() bool {
	return h != "" && h != HWAccelNone
}

// DetectHWAccels lists the hardware decode methods the ffmpeg binary supports.
// The result always includes none.
func DetectHWAccels(ctx context.Context, binary string) ([]HWAccel, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, ErrFFmpegNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, hwaccelDetectTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, "-hide_banner", "-hwaccels").Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrDetectTimeout
		}
		return nil, fmt.Errorf("failed to list hwaccels: %w", err)
	}

	methods := parseHWAccels(string(output))
	logger.Log.Debug().
		Strs("methods", lo.Map(methods, func(h HWAccel, _ int) string { return h.String() })).
		Msg("Detected hardware decode methods")
	return methods, nil
}

// parseHWAccels reads the method list printed by "ffmpeg -hwaccels", keeping known methods
func parseHWAccels(output string) []HWAccel {
	methods := []HWAccel{HWAccelNone}
	for _, line := range strings.Split(output, "\n") {
		name := HWAccel(strings.TrimSpace(line))
		if slices.Contains(hwaccelPriority, name) && !slices.Contains(methods, name) {
			methods = append(methods, name)
		}
	}
	return methods
}

// ResolveHWAccel turns a configured method into the one to pass to ffmpeg.
// Auto picks the most preferred available method; a specific method must be available.
func ResolveHWAccel(requested HWAccel, available []HWAccel) (HWAccel, error) {
	switch {
	case !requested.IsValid():
		return HWAccelNone, fmt.Errorf("%w: %s", ErrUnknownHWAccel, requested)
	case requested == HWAccelNone:
		return HWAccelNone, nil
	case requested == HWAccelAuto:
		for _, preferred := range hwaccelPriority {
			if slices.Contains(available, preferred) {
				return preferred, nil
			}
		}
		return HWAccelNone, nil
	case slices.Contains(available, requested):
		return requested, nil
	default:
		return HWAccelNone, fmt.Errorf("%w: %s (available: %v)", ErrHWAccelMissing, requested, available)
	}
}
