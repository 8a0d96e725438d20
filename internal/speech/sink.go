package speech

import (
	"context"
	"fmt"
	"strings"

	"parley/internal/ports"
)

// Voice names tried first when falling back to the local engine.
var preferredVoiceNames = []string{"female", "zira", "samantha"}

// Sink plays AI replies out loud. Backend synthesis is attempted first; any
// synthesis or playback failure falls back to the local on-device engine so a
// reply is almost never silent.
type Sink struct {
	client ports.SpeechClient
	player ports.AudioPlayer
	local  ports.Synthesizer
}

func NewSink(client ports.SpeechClient, player ports.AudioPlayer, local ports.Synthesizer) *Sink {
	return &Sink{client: client, player: player, local: local}
}

// Speak blocks until playback finished or every output path failed. The
// caller owns the speaking flag around this call.
func (s *Sink) Speak(ctx context.Context, text string) error {
	backendErr := s.speakViaBackend(ctx, text)
	if backendErr == nil {
		return nil
	}

	if localErr := s.speakLocally(ctx, text); localErr != nil {
		return fmt.Errorf("local fallback failed: %w (backend: %v)", localErr, backendErr)
	}
	return nil
}

func (s *Sink) speakViaBackend(ctx context.Context, text string) error {
	if s.client == nil || s.player == nil {
		return fmt.Errorf("backend speech path not configured")
	}

	audio, err := s.client.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, audio)
}

func (s *Sink) speakLocally(ctx context.Context, text string) error {
	if s.local == nil {
		return fmt.Errorf("no local speech engine")
	}

	voices, err := s.local.Voices(ctx)
	if err != nil {
		voices = nil
	}
	return s.local.Say(ctx, text, pickVoice(voices))
}

// pickVoice prefers a female voice by name or gender, else the engine
// default (zero Voice).
func pickVoice(voices []ports.Voice) ports.Voice {
	for _, name := range preferredVoiceNames {
		for _, voice := range voices {
			if strings.Contains(strings.ToLower(voice.Name), name) {
				return voice
			}
		}
	}
	for _, voice := range voices {
		if strings.EqualFold(voice.Gender, "female") || strings.EqualFold(voice.Gender, "f") {
			return voice
		}
	}
	return ports.Voice{}
}
