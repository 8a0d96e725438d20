package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"parley/internal/domain"
	"parley/internal/ports"
)

// NativeRecognizer is the preferred capture source: a streaming recognition
// service fed live microphone audio, emitting interim and final fragments as
// the user speaks.
type NativeRecognizer struct {
	cfg       RecognizerConfig
	mic       MicConfig
	chunkSize int

	openMic micOpener
	dial    streamDialer
}

func NewNativeRecognizer(cfg RecognizerConfig, mic MicConfig, chunkSize int) *NativeRecognizer {
	if chunkSize < 256 {
		chunkSize = 4096
	}
	return &NativeRecognizer{
		cfg:       cfg.withDefaults(),
		mic:       mic.withDefaults(),
		chunkSize: chunkSize,
		openMic:   openFFmpegMic,
		dial:      dialRecognizer,
	}
}

func (p *NativeRecognizer) Kind() domain.CaptureKind {
	return domain.CaptureNativeRecognizer
}

func (p *NativeRecognizer) Available() bool {
	return strings.TrimSpace(p.cfg.APIKey) != "" && commandAvailable(p.mic.Command)
}

func (p *NativeRecognizer) Start(ctx context.Context) (ports.CaptureSession, error) {
	stream, err := p.dial(ctx, p.cfg, p.mic)
	if err != nil {
		return nil, err
	}

	mic, err := p.openMic(ctx, p.mic)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	session := &recognizerSession{
		mic:       mic,
		stream:    stream,
		fragments: make(chan domain.Fragment, 16),
		done:      make(chan struct{}),
	}

	go session.pumpAudio(p.chunkSize)
	go session.forwardFragments()

	return session, nil
}

// recognizerSession couples one microphone stream with one recognition
// stream. Stopping the microphone lets the service flush its trailing finals
// before the fragment channel closes.
type recognizerSession struct {
	mic    micSession
	stream recognitionStream

	fragments chan domain.Fragment
	done      chan struct{}

	errMu sync.Mutex
	err   error

	stopOnce sync.Once
}

func (s *recognizerSession) Fragments() <-chan domain.Fragment {
	return s.fragments
}

func (s *recognizerSession) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.mic.Stop()
	})
	return err
}

func (s *recognizerSession) Wait() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *recognizerSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *recognizerSession) pumpAudio(chunkSize int) {
	buf := make([]byte, chunkSize)
	for {
		n, err := s.mic.Read(buf)
		if n > 0 {
			if sendErr := s.stream.SendAudio(buf[:n]); sendErr != nil {
				s.setErr(fmt.Errorf("failed to stream audio: %w", sendErr))
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.setErr(fmt.Errorf("microphone capture error: %w", err))
			}
			break
		}
	}
	_ = s.stream.CloseSend()
}

func (s *recognizerSession) forwardFragments() {
	defer close(s.done)
	defer close(s.fragments)

	for fragment := range s.stream.Fragments() {
		if strings.TrimSpace(fragment.Text) == "" {
			continue
		}
		s.fragments <- fragment
	}
	s.setErr(s.stream.Wait())
}
