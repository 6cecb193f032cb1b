package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/stwalsh4118/cutroom/internal/logger"
)

const (
	// Process termination timeouts
	terminationTimeout = 5 * time.Second
	killTimeout        = 2 * time.Second

	stderrTailBytes = 4096
)

// ErrProcessTimeout is returned when a process survives SIGKILL
var ErrProcessTimeout = errors.New("process termination timeout")

// ffmpegProcess is a running decoder with its stdout pipe and a tail of its stderr
type ffmpegProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	waited chan error
}

// launchFFmpeg starts ffmpeg with args. The context only bounds the launch itself.
func launchFFmpeg(ctx context.Context, binary string, cmd *FFmpegCommand) (*ffmpegProcess, error) {
	if cmd == nil || len(cmd.Args) == 0 {
		return nil, errors.New("invalid FFmpeg command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	launchStart := time.Now()
	execCmd := exec.Command(binary, cmd.Args...)

	stdout, err := execCmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := &tailBuffer{limit: stderrTailBytes}
	execCmd.Stderr = stderr

	if err := execCmd.Start(); err != nil {
		return nil, ClassifyError(fmt.Errorf("failed to start FFmpeg: %w", err))
	}

	logger.Log.Debug().
		Int("pid", execCmd.Process.Pid).
		Strs("args", cmd.Args[:min(8, len(cmd.Args))]).
		Int64("launch_latency_ms", time.Since(launchStart).Milliseconds()).
		Msg("FFmpeg process launched")

	return &ffmpegProcess{cmd: execCmd, stdout: stdout, stderr: stderr}, nil
}

// wait reaps the process once; later calls return the same result
func (p *ffmpegProcess) wait() <-chan error {
	if p.waited == nil {
		p.waited = make(chan error, 1)
		go func() { p.waited <- p.cmd.Wait() }()
	}
	return p.waited
}

// terminate stops the process gracefully (SIGTERM) then forcefully (SIGKILL) if needed.
// It returns a classified error when the process had already failed on its own.
func (p *ffmpegProcess) terminate() error {
	pid := p.cmd.Process.Pid

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil &&
		!errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	select {
	case err := <-p.wait():
		return p.exitError(err)
	case <-time.After(terminationTimeout):
		logger.Log.Warn().
			Int("pid", pid).
			Dur("timeout", terminationTimeout).
			Msg("FFmpeg process didn't exit gracefully, sending SIGKILL")
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process: %w", err)
	}

	select {
	case <-p.wait():
		return nil
	case <-time.After(killTimeout):
		logger.Log.Error().
			Int("pid", pid).
			Dur("kill_timeout", killTimeout).
			Msg("FFmpeg process did not die after SIGKILL")
		return fmt.Errorf("%w: process %d did not die after SIGKILL", ErrProcessTimeout, pid)
	}
}

// exitError classifies a non-zero exit that was not caused by our own SIGTERM
func (p *ffmpegProcess) exitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return nil
		}
		// ffmpeg exits 255 when interrupted by a signal
		if exitErr.ExitCode() == 255 {
			return nil
		}
	}
	if tail := p.stderr.String(); tail != "" {
		return ParseFFmpegError(tail)
	}
	return ClassifyError(err)
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
