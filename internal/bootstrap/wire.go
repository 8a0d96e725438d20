package bootstrap

import (
	"os"
	"path/filepath"

	"parley/internal/backend"
	"parley/internal/capture"
	"parley/internal/config"
	"parley/internal/conversation"
	"parley/internal/localstore"
	"parley/internal/ports"
	"parley/internal/session"
	"parley/internal/speech"
	"parley/internal/voice"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *voice.Controller
	State      *conversation.State
	Session    *session.Store
	Backend    *backend.Client
	Store      *localstore.Store
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(events ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return Services{}, err
	}
	store, err := localstore.Open(cfg.Storage.Path)
	if err != nil {
		return Services{}, err
	}

	backendClient := backend.NewClient(cfg.Backend.BaseURL, nil)
	authClient := session.NewClient(cfg.Auth.BaseURL, nil)
	sessionStore := session.NewStore(authClient, store)

	state := conversation.NewState(events)

	mic := capture.MicConfig{
		Command:     cfg.Audio.RecorderCommand,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
	}

	// Recognizer first, recorder as the transcribe-on-stop fallback.
	providers := []ports.CaptureProvider{
		capture.NewNativeRecognizer(capture.RecognizerConfig{
			APIKey:      cfg.Recognizer.APIKey,
			APIBaseURL:  cfg.Recognizer.APIBaseURL,
			Model:       cfg.Recognizer.Model,
			Language:    cfg.Recognizer.Language,
			SmartFormat: cfg.Recognizer.SmartFormat,
		}, mic, cfg.Audio.ChunkSize),
		capture.NewMicrophoneRecorder(mic, backendClient),
	}

	sink := speech.NewSink(
		backendClient,
		speech.NewFFPlayPlayer(cfg.Speech.PlayerCommand),
		speech.NewESpeak(speech.ESpeakConfig{
			Command:   cfg.Speech.LocalCommand,
			WordsPerM: cfg.Speech.WordsPerM,
			Pitch:     cfg.Speech.Pitch,
			Volume:    cfg.Speech.Volume,
		}),
	)

	controller := voice.NewController(providers, backendClient, sink, state, events)

	return Services{
		Controller: controller,
		State:      state,
		Session:    sessionStore,
		Backend:    backendClient,
		Store:      store,
		Config:     cfg,
	}, nil
}
