package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config stores runtime configuration for the desktop client and the auth
// server binary.
type Config struct {
	Backend    BackendConfig
	Auth       AuthConfig
	Recognizer RecognizerConfig
	Audio      AudioConfig
	Speech     SpeechConfig
	Storage    StorageConfig
}

type BackendConfig struct {
	BaseURL string
}

type AuthConfig struct {
	BaseURL string

	// Server-side settings, used only by the auth server binary.
	Port   string
	Secret string
	DBPath string
}

type RecognizerConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
}

type SpeechConfig struct {
	PlayerCommand string
	LocalCommand  string
	WordsPerM     int
	Pitch         int
	Volume        int
}

type StorageConfig struct {
	Path string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Config{
		Backend: BackendConfig{
			BaseURL: envOrDefault("PARLEY_BACKEND_URL", "http://localhost:5000"),
		},
		Auth: AuthConfig{
			BaseURL: envOrDefault("PARLEY_AUTH_URL", "http://localhost:8080"),
			Port:    envOrDefault("PARLEY_AUTH_PORT", "8080"),
			Secret:  strings.TrimSpace(os.Getenv("PARLEY_AUTH_SECRET")),
			DBPath:  envOrDefault("PARLEY_AUTH_DB", filepath.Join(home, ".local", "share", "parley", "users.db")),
		},
		Recognizer: RecognizerConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("PARLEY_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("PARLEY_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("PARLEY_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("PARLEY_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("PARLEY_CHANNELS", 1),
			ChunkSize:  envOrDefaultInt("PARLEY_AUDIO_CHUNK_SIZE", 4096),
		},
		Speech: SpeechConfig{
			PlayerCommand: envOrDefault("PARLEY_PLAYER_COMMAND", "ffplay"),
			LocalCommand:  envOrDefault("PARLEY_SPEECH_COMMAND", "espeak-ng"),
			WordsPerM:     envOrDefaultInt("PARLEY_SPEECH_RATE", 160),
			Pitch:         envOrDefaultInt("PARLEY_SPEECH_PITCH", 50),
			Volume:        envOrDefaultInt("PARLEY_SPEECH_VOLUME", 80),
		},
		Storage: StorageConfig{
			Path: envOrDefault("PARLEY_STATE_DB", filepath.Join(home, ".local", "share", "parley", "state.db")),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
