package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name          string
		output        string
		wantErr       error
		wantDuration  float64
		wantWidth     int
		wantFrameRate float64
	}{
		{
			name: "stream duration and rational rate",
			output: `{"streams":[
				{"codec_type":"audio","codec_name":"aac","duration":"99"},
				{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"duration":"120.5","avg_frame_rate":"30000/1001"}
			],"format":{"duration":"121.0"}}`,
			wantDuration:  120.5,
			wantWidth:     1920,
			wantFrameRate: 30000.0 / 1001.0,
		},
		{
			name: "duration from format and r_frame_rate fallback",
			output: `{"streams":[
				{"codec_type":"video","codec_name":"hevc","width":3840,"height":2160,"avg_frame_rate":"0/0","r_frame_rate":"25/1"}
			],"format":{"duration":"300.123"}}`,
			wantDuration:  300.123,
			wantWidth:     3840,
			wantFrameRate: 25,
		},
		{
			name:    "audio only",
			output:  `{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"10"}}`,
			wantErr: ErrNoVideoStream,
		},
		{
			name:    "no duration",
			output:  `{"streams":[{"codec_type":"video","width":640,"height":480}],"format":{}}`,
			wantErr: ErrInvalidFile,
		},
		{
			name:    "no dimensions",
			output:  `{"streams":[{"codec_type":"video","duration":"5"}],"format":{}}`,
			wantErr: ErrInvalidFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseOutput([]byte(tt.output))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseOutput() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOutput() unexpected error: %v", err)
			}
			if info.Duration != tt.wantDuration {
				t.Errorf("Duration = %v, want %v", info.Duration, tt.wantDuration)
			}
			if info.Width != tt.wantWidth {
				t.Errorf("Width = %v, want %v", info.Width, tt.wantWidth)
			}
			if info.FrameRate != tt.wantFrameRate {
				t.Errorf("FrameRate = %v, want %v", info.FrameRate, tt.wantFrameRate)
			}
		})
	}
}

func TestParseOutput_InvalidJSON(t *testing.T) {
	if _, err := ParseOutput([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseRate(t *testing.T) {
	tests := map[string]float64{
		"30/1":       30,
		"24000/1001": 24000.0 / 1001.0,
		"0/0":        0,
		"":           0,
		"29.97":      29.97,
		"x/1":        0,
	}
	for in, want := range tests {
		if got := parseRate(in); got != want {
			t.Errorf("parseRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestProbe_MissingBinary(t *testing.T) {
	p := NewFFprobe("definitely-not-a-real-ffprobe")
	_, err := p.Probe(context.Background(), "/tmp/x.mp4")
	if !errors.Is(err, ErrFFprobeNotFound) {
		t.Errorf("Probe() error = %v, want %v", err, ErrFFprobeNotFound)
	}
}

func TestProbe_RealFile(t *testing.T) {
	p := NewFFprobe("")
	if err := p.CheckInstalled(); err != nil {
		t.Skip("FFprobe not installed, skipping test")
	}

	_, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if err == nil {
		t.Error("expected error probing a missing file")
	}
}

func TestValidateSource(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.MP4")
	if err := os.WriteFile(video, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	folder := filepath.Join(dir, "folder.mkv")
	if err := os.Mkdir(folder, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"readable video", video, nil},
		{"wrong extension", text, ErrUnsupportedFormat},
		{"missing", filepath.Join(dir, "gone.mov"), ErrFileNotFound},
		{"directory", folder, ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.path)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSource() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSource() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
