package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"parley/internal/backend"
	"parley/internal/domain"
	"parley/internal/ports"
)

// Recorded audio is held in memory until transcription; cap it so a forgotten
// session cannot grow without bound.
const maxRecordingBytes = 32 << 20

// MicrophoneRecorder is the fallback capture source for hosts without a
// configured streaming recognizer: it buffers raw microphone audio and sends
// it to the backend for transcription once the user stops talking. It emits
// no interim fragments, only a single final one.
type MicrophoneRecorder struct {
	mic         MicConfig
	transcriber ports.Transcriber

	openMic micOpener
}

func NewMicrophoneRecorder(mic MicConfig, transcriber ports.Transcriber) *MicrophoneRecorder {
	return &MicrophoneRecorder{
		mic:         mic.withDefaults(),
		transcriber: transcriber,
		openMic:     openFFmpegMic,
	}
}

func (p *MicrophoneRecorder) Kind() domain.CaptureKind {
	return domain.CaptureMicrophoneRecorder
}

func (p *MicrophoneRecorder) Available() bool {
	return commandAvailable(p.mic.Command)
}

func (p *MicrophoneRecorder) Start(ctx context.Context) (ports.CaptureSession, error) {
	mic, err := p.openMic(ctx, p.mic)
	if err != nil {
		return nil, err
	}

	session := &recorderSession{
		mic:       mic,
		fragments: make(chan domain.Fragment, 1),
		done:      make(chan struct{}),
	}

	go session.run(ctx, p.mic, p.transcriber)

	return session, nil
}

type recorderSession struct {
	mic micSession

	fragments chan domain.Fragment
	done      chan struct{}

	errMu sync.Mutex
	err   error

	stopOnce sync.Once
}

func (s *recorderSession) Fragments() <-chan domain.Fragment {
	return s.fragments
}

// Stop halts the microphone; the session then transcribes what was captured
// and delivers the result as its one final fragment.
func (s *recorderSession) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.mic.Stop()
	})
	return err
}

func (s *recorderSession) Wait() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *recorderSession) run(ctx context.Context, cfg MicConfig, transcriber ports.Transcriber) {
	defer close(s.done)
	defer close(s.fragments)

	var pcm bytes.Buffer
	if _, err := io.Copy(&pcm, io.LimitReader(s.mic, maxRecordingBytes)); err != nil {
		s.setErr(fmt.Errorf("microphone capture error: %w", err))
		return
	}

	if pcm.Len() == 0 {
		return
	}

	wav := encodeWAV(pcm.Bytes(), cfg.SampleRate, cfg.Channels)
	text, err := transcriber.Transcribe(ctx, wav)
	if err != nil {
		if !errors.Is(err, backend.ErrTranscription) {
			err = fmt.Errorf("%w: %v", backend.ErrTranscription, err)
		}
		s.setErr(err)
		return
	}

	if strings.TrimSpace(text) == "" {
		return
	}
	s.fragments <- domain.Fragment{Kind: domain.FragmentFinal, Text: text}
}

func (s *recorderSession) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
