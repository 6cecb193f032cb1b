package backend

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestDetectHWAccels(t *testing.T) {
	methods, err := DetectHWAccels(context.Background(), "ffmpeg")
	if errors.Is(err, ErrFFmpegNotFound) {
		t.Skipf("FFmpeg not installed, skipping test: %v", err)
	}
	if err != nil {
		t.Fatalf("DetectHWAccels() error = %v", err)
	}
	if !slices.Contains(methods, HWAccelNone) {
		t.Errorf("DetectHWAccels() = %v, want none included", methods)
	}
}

func TestDetectHWAccels_MissingBinary(t *testing.T) {
	_, err := DetectHWAccels(context.Background(), "/nonexistent/ffmpeg")
	if !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("DetectHWAccels() error = %v, want %v", err, ErrFFmpegNotFound)
	}
}

func TestHWAccel_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		accel HWAccel
		want  bool
	}{
		{"none", HWAccelNone, true},
		{"auto", HWAccelAuto, true},
		{"cuda", HWAccelCUDA, true},
		{"videotoolbox", HWAccelVideoToolbox, true},
		{"unknown", HWAccel("d3d11va"), false},
		{"empty", HWAccel(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.accel.IsValid(); got != tt.want {
				t.Errorf("HWAccel.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseHWAccels(t *testing.T) {
	output := "Hardware acceleration methods:\nvdpau\ncuda\nvaapi\nqsv\ndrm\nopencl\nvulkan\n\n"

	got := parseHWAccels(output)
	want := []HWAccel{HWAccelNone, HWAccelCUDA, HWAccelVAAPI, HWAccelQSV}
	if !slices.Equal(got, want) {
		t.Errorf("parseHWAccels() = %v, want %v", got, want)
	}

	if got := parseHWAccels(""); !slices.Equal(got, []HWAccel{HWAccelNone}) {
		t.Errorf("parseHWAccels(empty) = %v, want [none]", got)
	}
}

func TestResolveHWAccel(t *testing.T) {
	available := []HWAccel{HWAccelNone, HWAccelVAAPI, HWAccelQSV}

	tests := []struct {
		name      string
		requested HWAccel
		available []HWAccel
		want      HWAccel
		wantErr   error
	}{
		{"none stays none", HWAccelNone, available, HWAccelNone, nil},
		{"auto prefers qsv over vaapi", HWAccelAuto, available, HWAccelQSV, nil},
		{"auto without hardware", HWAccelAuto, []HWAccel{HWAccelNone}, HWAccelNone, nil},
		{"available method", HWAccelVAAPI, available, HWAccelVAAPI, nil},
		{"missing method", HWAccelCUDA, available, HWAccelNone, ErrHWAccelMissing},
		{"unknown method", HWAccel("dxva2"), available, HWAccelNone, ErrUnknownHWAccel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveHWAccel(tt.requested, tt.available)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveHWAccel() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveHWAccel() = %v, want %v", got, tt.want)
			}
		})
	}
}
