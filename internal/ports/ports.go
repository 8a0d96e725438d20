package ports

import (
	"context"

	"parley/internal/domain"
)

// CaptureSession is one live speech capture producing transcript fragments.
// Fragments are delivered in emission order and the channel is closed when the
// session ends; Wait reports the terminal error, if any, after that.
type CaptureSession interface {
	Fragments() <-chan domain.Fragment
	Stop() error
	Wait() error
}

// CaptureProvider creates capture sessions for one capture mechanism.
// Available reports whether the mechanism can be acquired on this host.
type CaptureProvider interface {
	Kind() domain.CaptureKind
	Available() bool
	Start(ctx context.Context) (CaptureSession, error)
}

// ConversationClient sends a committed utterance to the backend and returns
// the AI reply.
type ConversationClient interface {
	Converse(ctx context.Context, text string) (domain.Exchange, error)
}

// Transcriber converts recorded WAV audio into text via the backend.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// SpeechClient synthesizes text into playable audio bytes via the backend.
type SpeechClient interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioPlayer plays synthesized audio, blocking until playback ends or fails.
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte) error
}

// Voice is one selectable voice of the local synthesis engine.
type Voice struct {
	ID     string
	Name   string
	Gender string
}

// Synthesizer is the local on-device speech engine used when backend
// synthesis or playback fails.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Say(ctx context.Context, text string, voice Voice) error
}

// SpeechSink turns reply text into audible speech, blocking until the audio
// finished playing or every output path failed.
type SpeechSink interface {
	Speak(ctx context.Context, text string) error
}

// EventSink pushes conversation and voice state updates to the UI. The
// presentation layer only ever reacts to these events.
type EventSink interface {
	VoiceStateChanged(state domain.VoiceState)
	MessageAppended(message domain.Message)
	MessagesCleared()
	VoiceError(code domain.ErrorCode, detail string)
}
