package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"parley/internal/backend"
	"parley/internal/domain"
)

func TestRecorderSessionTranscribesOnStop(t *testing.T) {
	t.Parallel()

	mic := &fakeMic{chunks: [][]byte{[]byte("pcm-one"), []byte("pcm-two")}}
	transcriber := &fakeTranscriber{text: "hello there"}

	provider := NewMicrophoneRecorder(MicConfig{SampleRate: 16000, Channels: 1}, transcriber)
	provider.openMic = func(context.Context, MicConfig) (micSession, error) { return mic, nil }

	session, err := provider.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	var got []domain.Fragment
	for fragment := range session.Fragments() {
		got = append(got, fragment)
	}
	if err := session.Wait(); err != nil {
		t.Fatalf("wait failed: %v", err)
	}

	if len(got) != 1 || got[0].Kind != domain.FragmentFinal || got[0].Text != "hello there" {
		t.Fatalf("unexpected fragments: %+v", got)
	}

	wav := transcriber.lastAudio()
	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Fatalf("expected WAV-wrapped audio")
	}
	if !bytes.Contains(wav, []byte("pcm-onepcm-two")) {
		t.Fatalf("expected captured PCM inside WAV payload")
	}
}

func TestRecorderSessionEmptyTranscriptYieldsNoFragment(t *testing.T) {
	t.Parallel()

	mic := &fakeMic{chunks: [][]byte{[]byte("pcm")}}
	transcriber := &fakeTranscriber{text: "   "}

	provider := NewMicrophoneRecorder(MicConfig{}, transcriber)
	provider.openMic = func(context.Context, MicConfig) (micSession, error) { return mic, nil }

	session, err := provider.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_ = session.Stop()

	for range session.Fragments() {
		t.Fatalf("expected no fragments for blank transcript")
	}
	if err := session.Wait(); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
}

func TestRecorderSessionTranscriptionFailure(t *testing.T) {
	t.Parallel()

	mic := &fakeMic{chunks: [][]byte{[]byte("pcm")}}
	transcriber := &fakeTranscriber{err: errors.New("backend down")}

	provider := NewMicrophoneRecorder(MicConfig{}, transcriber)
	provider.openMic = func(context.Context, MicConfig) (micSession, error) { return mic, nil }

	session, err := provider.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_ = session.Stop()

	for range session.Fragments() {
		t.Fatalf("expected no fragments on transcription failure")
	}
	if err := session.Wait(); !errors.Is(err, backend.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestRecorderSessionNoAudioCaptured(t *testing.T) {
	t.Parallel()

	mic := &fakeMic{}
	transcriber := &fakeTranscriber{text: "ignored"}

	provider := NewMicrophoneRecorder(MicConfig{}, transcriber)
	provider.openMic = func(context.Context, MicConfig) (micSession, error) { return mic, nil }

	session, err := provider.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_ = session.Stop()

	for range session.Fragments() {
		t.Fatalf("expected no fragments without audio")
	}
	if err := session.Wait(); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if transcriber.calls() != 0 {
		t.Fatalf("expected no transcription without audio")
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := encodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("unexpected WAV size: %d", len(wav))
	}
	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Fatalf("unexpected sample rate: %d", rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Fatalf("unexpected data size: %d", size)
	}
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	audio []byte
	count int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, wav []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.audio = append([]byte(nil), wav...)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeTranscriber) lastAudio() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audio
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}
