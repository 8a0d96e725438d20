package conversation

import (
	"sync"
	"testing"

	"parley/internal/domain"
)

func TestStateAppendKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	events := &recordingSink{}
	state := NewState(events)

	first := state.Append(domain.RoleUser, "hello")
	second := state.Append(domain.RoleAI, "hi there")

	messages := state.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].ID != first.ID || messages[1].ID != second.ID {
		t.Fatalf("messages out of insertion order")
	}
	if messages[0].Role != domain.RoleUser || messages[1].Role != domain.RoleAI {
		t.Fatalf("unexpected roles: %+v", messages)
	}
	if first.ID == second.ID {
		t.Fatalf("expected unique message ids")
	}

	appended := events.snapshotMessages()
	if len(appended) != 2 || appended[0].Content != "hello" {
		t.Fatalf("expected append events, got %+v", appended)
	}
}

func TestStateClearEmptiesHistoryOnly(t *testing.T) {
	t.Parallel()

	events := &recordingSink{}
	state := NewState(events)
	state.Append(domain.RoleUser, "hello")
	state.SetProcessing(true)

	state.Clear()

	if len(state.Messages()) != 0 {
		t.Fatalf("expected empty history")
	}
	if !state.Voice().IsProcessing {
		t.Fatalf("clear must not touch voice flags")
	}
	if events.clears != 1 {
		t.Fatalf("expected one cleared event, got %d", events.clears)
	}
}

func TestStateListeningStopDiscardsTranscript(t *testing.T) {
	t.Parallel()

	state := NewState(&recordingSink{})
	state.SetListening(true)
	state.SetTranscript("Hel")
	state.SetTranscript("Hello")

	if got := state.Voice().CurrentTranscript; got != "Hello" {
		t.Fatalf("unexpected transcript: %q", got)
	}

	state.SetListening(false)
	voice := state.Voice()
	if voice.IsListening || voice.CurrentTranscript != "" {
		t.Fatalf("expected transcript cleared with listening, got %+v", voice)
	}
}

func TestStateEmitsSnapshotsPerChange(t *testing.T) {
	t.Parallel()

	events := &recordingSink{}
	state := NewState(events)

	state.SetListening(true)
	state.SetSpeaking(true)

	states := events.snapshotStates()
	if len(states) != 2 {
		t.Fatalf("expected 2 state events, got %d", len(states))
	}
	if !states[0].IsListening || states[0].IsSpeaking {
		t.Fatalf("unexpected first snapshot: %+v", states[0])
	}
	if !states[1].IsListening || !states[1].IsSpeaking {
		t.Fatalf("unexpected second snapshot: %+v", states[1])
	}
}

type recordingSink struct {
	mu       sync.Mutex
	states   []domain.VoiceState
	messages []domain.Message
	clears   int
}

func (r *recordingSink) VoiceStateChanged(state domain.VoiceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingSink) MessageAppended(message domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingSink) MessagesCleared() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recordingSink) VoiceError(domain.ErrorCode, string) {}

func (r *recordingSink) snapshotStates() []domain.VoiceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.VoiceState, len(r.states))
	copy(out, r.states)
	return out
}

func (r *recordingSink) snapshotMessages() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.messages))
	copy(out, r.messages)
	return out
}
