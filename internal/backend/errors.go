package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of decode error
type ErrorType int

const (
	// ErrorTypeDecoderCrash indicates the decoder process exited unexpectedly
	ErrorTypeDecoderCrash ErrorType = iota
	// ErrorTypeFileMissing indicates the source file doesn't exist
	ErrorTypeFileMissing
	// ErrorTypeFileCorrupt indicates the source file is corrupted or unreadable
	ErrorTypeFileCorrupt
	// ErrorTypeHardwareDecoder indicates hardware-accelerated decoding failed
	ErrorTypeHardwareDecoder
	// ErrorTypeBinaryMissing indicates the decoder executable could not be found
	ErrorTypeBinaryMissing
	// ErrorTypeTimeout indicates a command did not finish in time
	ErrorTypeTimeout
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeDecoderCrash:
		return "decoder_crash"
	case ErrorTypeFileMissing:
		return "file_missing"
	case ErrorTypeFileCorrupt:
		return "file_corrupt"
	case ErrorTypeHardwareDecoder:
		return "hardware_decoder"
	case ErrorTypeBinaryMissing:
		return "binary_missing"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ErrorSeverity represents the severity of a decode error
type ErrorSeverity int

const (
	// SeverityWarning represents issues the user can fix, like a moved source file
	SeverityWarning ErrorSeverity = iota
	// SeverityError represents failures of a single command
	SeverityError
	// SeverityCritical represents failures that make the backend unusable
	SeverityCritical
)

// String returns the string representation of ErrorSeverity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// DecodeError is a classified backend failure
type DecodeError struct {
	Type     ErrorType
	Severity ErrorSeverity
	Message  string
	Cause    error
}

// NewDecodeError creates a DecodeError with the severity implied by its type
func NewDecodeError(errorType ErrorType, message string, cause error) *DecodeError {
	return &DecodeError{
		Type:     errorType,
		Severity: severityOf(errorType),
		Message:  message,
		Cause:    cause,
	}
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type.String(), e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func severityOf(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrorTypeFileMissing, ErrorTypeFileCorrupt, ErrorTypeHardwareDecoder:
		return SeverityWarning
	case ErrorTypeBinaryMissing:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// ClassifyError classifies a generic error into a DecodeError
func ClassifyError(err error) *DecodeError {
	if err == nil {
		return nil
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "executable file not found"):
		return NewDecodeError(ErrorTypeBinaryMissing, "Decoder executable not found", err)
	case strings.Contains(errMsg, "no such file"):
		return NewDecodeError(ErrorTypeFileMissing, "Source file not found", err)
	case strings.Contains(errMsg, "deadline exceeded") || strings.Contains(errMsg, "timed out"):
		return NewDecodeError(ErrorTypeTimeout, "Decoder command timed out", err)
	default:
		return NewDecodeError(ErrorTypeDecoderCrash, "Unknown decoder error", err)
	}
}

// ParseFFmpegError classifies ffmpeg stderr output
func ParseFFmpegError(stderr string) *DecodeError {
	stderrLower := strings.ToLower(stderr)
	cause := fmt.Errorf("ffmpeg: %s", strings.TrimSpace(stderr))

	switch {
	case strings.Contains(stderrLower, "no such file or directory"):
		return NewDecodeError(ErrorTypeFileMissing, "Source file not found", cause)
	case strings.Contains(stderrLower, "invalid data found") ||
		strings.Contains(stderrLower, "could not find codec") ||
		strings.Contains(stderrLower, "moov atom not found"):
		return NewDecodeError(ErrorTypeFileCorrupt, "Source file is corrupted or invalid", cause)
	case strings.Contains(stderrLower, "hwaccel") && strings.Contains(stderrLower, "failed") ||
		strings.Contains(stderrLower, "no device available for decoder"):
		return NewDecodeError(ErrorTypeHardwareDecoder, "Hardware decoding not available", cause)
	case strings.Contains(stderrLower, "timeout"):
		return NewDecodeError(ErrorTypeTimeout, "ffmpeg operation timed out", cause)
	default:
		return NewDecodeError(ErrorTypeDecoderCrash, "ffmpeg process failed", cause)
	}
}
