package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MicConfig describes how the microphone should be captured.
type MicConfig struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

func (c MicConfig) withDefaults() MicConfig {
	if c.Command == "" {
		c.Command = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "pulse"
	}
	if c.InputDevice == "" {
		c.InputDevice = "default"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	return c
}

// micSession is a live microphone stream of raw s16le PCM.
type micSession interface {
	io.Reader
	Stop() error
}

// micOpener acquires the microphone. Swappable for tests.
type micOpener func(ctx context.Context, cfg MicConfig) (micSession, error)

// openFFmpegMic spawns ffmpeg reading the configured input device and
// emitting raw PCM on stdout.
func openFFmpegMic(ctx context.Context, cfg MicConfig) (micSession, error) {
	cfg = cfg.withDefaults()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// An immediate exit means the device or format is unusable.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("recorder exited before capture started: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, errors.New("recorder exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegMic{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegMic struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (m *ffmpegMic) Read(p []byte) (int, error) {
	return m.stdout.Read(p)
}

// Stop interrupts the recorder and waits briefly for a clean exit before
// killing it.
func (m *ffmpegMic) Stop() error {
	m.stopOnce.Do(func() {
		if m.process != nil {
			_ = m.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-m.waitErr:
			if ok {
				m.stopErr = normalizeExitErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if m.process != nil {
				_ = m.process.Kill()
			}
			err, ok := <-m.waitErr
			if ok {
				m.stopErr = normalizeExitErr(err)
			}
		}

		if closeErr := m.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if m.stopErr == nil {
				m.stopErr = closeErr
			}
		}

		if m.stopErr != nil && m.stderr != nil && m.stderr.Len() > 0 {
			m.stopErr = fmt.Errorf("%w: %s", m.stopErr, strings.TrimSpace(m.stderr.String()))
		}
	})

	return m.stopErr
}

// An interrupt-driven exit status is the expected way down, not a failure.
func normalizeExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func commandAvailable(command string) bool {
	if command == "" {
		return false
	}
	_, err := exec.LookPath(command)
	return err == nil
}
