package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"parley/internal/ports"
)

// FFPlayPlayer plays synthesized audio through an ffplay subprocess reading
// from stdin. Play blocks until playback ends so the caller can sequence the
// speaking flag around it.
type FFPlayPlayer struct {
	command string
}

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

func (p *FFPlayPlayer) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

func (p *FFPlayPlayer) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return errors.New("no audio to play")
	}

	cmd := exec.CommandContext(ctx, p.command,
		"-autoexit",
		"-nodisp",
		"-loglevel", "error",
		"-i", "-",
	)
	cmd.Stdin = bytes.NewReader(audio)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("playback failed: %w: %s", err, detail)
		}
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

var _ ports.AudioPlayer = (*FFPlayPlayer)(nil)
