package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupportedFormat is returned for files whose extension is not a known video container
var ErrUnsupportedFormat = errors.New("unsupported file format")

// videoExtensions are the containers accepted as project sources
var videoExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".webm", ".m4v", ".ts"}

// IsVideoFile reports whether path has a supported video extension
func IsVideoFile(path string) bool {
	return slices.Contains(videoExtensions, strings.ToLower(filepath.Ext(path)))
}

// ValidateSource checks that path is a readable regular file with a video extension
func ValidateSource(path string) error {
	if !IsVideoFile(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: permission denied", ErrFileNotFound)
		}
		return fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: path is a directory", ErrFileNotFound)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	return file.Close()
}
