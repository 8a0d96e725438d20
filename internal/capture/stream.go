package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"parley/internal/domain"
)

// RecognizerConfig holds the streaming recognition service settings.
type RecognizerConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

func (c RecognizerConfig) withDefaults() RecognizerConfig {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	return c
}

// recognitionStream is an active websocket recognition session.
type recognitionStream interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Fragments() <-chan domain.Fragment
	Wait() error
	Close() error
}

// streamDialer opens a recognition stream. Swappable for tests.
type streamDialer func(ctx context.Context, cfg RecognizerConfig, audio MicConfig) (recognitionStream, error)

func dialRecognizer(ctx context.Context, cfg RecognizerConfig, audio MicConfig) (recognitionStream, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("recognizer API key is not configured")
	}

	wsURL, err := buildListenURL(cfg, audio.withDefaults())
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to recognition service: %w", err)
	}

	stream := &wsStream{
		conn:      conn,
		fragments: make(chan domain.Fragment, 64),
		audio:     make(chan []byte, 32),
		done:      make(chan struct{}),
	}

	stream.wg.Add(2)
	go stream.readLoop()
	go stream.writeLoop()
	go func() {
		stream.wg.Wait()
		close(stream.fragments)
		close(stream.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = stream.Close()
	}()

	return stream, nil
}

func buildListenURL(cfg RecognizerConfig, audio MicConfig) (string, error) {
	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid recognizer base URL: %w", err)
	}

	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https", "":
		base.Scheme = "wss"
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/listen"

	query := base.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	query.Set("channels", strconv.Itoa(audio.Channels))
	query.Set("interim_results", "true")
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	if cfg.SmartFormat {
		query.Set("smart_format", "true")
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}

type wsStream struct {
	conn *websocket.Conn

	fragments chan domain.Fragment
	audio     chan []byte
	done      chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *wsStream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("recognition stream closed")
	}
}

func (s *wsStream) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *wsStream) Fragments() <-chan domain.Fragment {
	return s.fragments
}

func (s *wsStream) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *wsStream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *wsStream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *wsStream) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *wsStream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read recognition event: %w", err))
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "recognition service returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		transcript := response.transcript()
		if transcript == "" {
			continue
		}

		fragment := domain.Fragment{Kind: domain.FragmentPartial, Text: transcript}
		if response.IsFinal || response.SpeechFinal {
			fragment.Kind = domain.FragmentFinal
		}
		s.emit(fragment)
	}
}

func (s *wsStream) emit(fragment domain.Fragment) {
	select {
	case s.fragments <- fragment:
	case <-s.done:
	default:
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}
