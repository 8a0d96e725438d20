package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"parley/internal/ports"
)

// ESpeakConfig tunes the local engine roughly like the original web voice:
// slightly slower than default, normal pitch.
type ESpeakConfig struct {
	Command   string
	WordsPerM int
	Pitch     int
	Volume    int
}

func (c ESpeakConfig) withDefaults() ESpeakConfig {
	if c.Command == "" {
		c.Command = "espeak-ng"
	}
	if c.WordsPerM <= 0 {
		c.WordsPerM = 160
	}
	if c.Pitch <= 0 {
		c.Pitch = 50
	}
	if c.Volume <= 0 {
		c.Volume = 80
	}
	return c
}

// ESpeak is the local on-device synthesis fallback, driven through the
// espeak-ng command line.
type ESpeak struct {
	cfg ESpeakConfig

	run func(ctx context.Context, args []string, stdin string) ([]byte, error)
}

func NewESpeak(cfg ESpeakConfig) *ESpeak {
	engine := &ESpeak{cfg: cfg.withDefaults()}
	engine.run = engine.runCommand
	return engine
}

func (e *ESpeak) Available() bool {
	_, err := exec.LookPath(e.cfg.Command)
	return err == nil
}

// Voices lists the engine voices. Output format is the fixed-width table
// printed by `espeak-ng --voices`.
func (e *ESpeak) Voices(ctx context.Context) ([]ports.Voice, error) {
	out, err := e.run(ctx, []string{"--voices"}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return parseVoiceTable(string(out)), nil
}

// Say speaks text synchronously with the given voice, or the engine default
// when voice is zero.
func (e *ESpeak) Say(ctx context.Context, text string, voice ports.Voice) error {
	args := []string{
		"-s", strconv.Itoa(e.cfg.WordsPerM),
		"-p", strconv.Itoa(e.cfg.Pitch),
		"-a", strconv.Itoa(e.cfg.Volume),
		"--stdin",
	}
	if voice.ID != "" {
		args = append(args, "-v", voice.ID)
	}

	if _, err := e.run(ctx, args, text); err != nil {
		return fmt.Errorf("local synthesis failed: %w", err)
	}
	return nil
}

func (e *ESpeak) runCommand(ctx context.Context, args []string, stdin string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.cfg.Command, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%w: %s", err, detail)
		}
		return nil, err
	}
	return out.Bytes(), nil
}

// parseVoiceTable reads lines like:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-GB           --/M      English (Great Britain) gmw/en
func parseVoiceTable(out string) []ports.Voice {
	var voices []ports.Voice

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		ageGender := fields[2]
		gender := ""
		if idx := strings.LastIndex(ageGender, "/"); idx >= 0 && idx+1 < len(ageGender) {
			switch strings.ToUpper(ageGender[idx+1:]) {
			case "F":
				gender = "female"
			case "M":
				gender = "male"
			}
		}

		voices = append(voices, ports.Voice{
			ID:     fields[len(fields)-1],
			Name:   strings.Join(fields[3:len(fields)-1], " "),
			Gender: gender,
		})
	}
	return voices
}

var _ ports.Synthesizer = (*ESpeak)(nil)
