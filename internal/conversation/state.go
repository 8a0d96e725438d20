package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/internal/domain"
	"parley/internal/ports"
)

// State holds the ordered message history and the live voice flags. It is
// mutated only by the voice controller and observed by the UI through the
// event sink; history is append-only and never persisted across restarts.
type State struct {
	events ports.EventSink

	mu       sync.Mutex
	messages []domain.Message
	voice    domain.VoiceState
}

func NewState(events ports.EventSink) *State {
	return &State{events: events}
}

// Append records a finalized message and returns it. Partial transcript text
// never reaches history.
func (s *State) Append(role domain.Role, content string) domain.Message {
	message := domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	s.events.MessageAppended(message)
	return message
}

// Clear empties the history. Voice flags are untouched.
func (s *State) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()

	s.events.MessagesCleared()
}

// Messages returns a copy of the history in insertion order.
func (s *State) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Voice returns the current voice state snapshot.
func (s *State) Voice() domain.VoiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// SetListening toggles the listening flag. Leaving the listening state always
// discards the interim transcript.
func (s *State) SetListening(listening bool) {
	s.update(func(v *domain.VoiceState) {
		v.IsListening = listening
		if !listening {
			v.CurrentTranscript = ""
		}
	})
}

func (s *State) SetProcessing(processing bool) {
	s.update(func(v *domain.VoiceState) { v.IsProcessing = processing })
}

func (s *State) SetSpeaking(speaking bool) {
	s.update(func(v *domain.VoiceState) { v.IsSpeaking = speaking })
}

// SetTranscript replaces the interim transcript shown while listening.
func (s *State) SetTranscript(text string) {
	s.update(func(v *domain.VoiceState) { v.CurrentTranscript = text })
}

func (s *State) update(apply func(*domain.VoiceState)) {
	s.mu.Lock()
	apply(&s.voice)
	snapshot := s.voice
	s.mu.Unlock()

	s.events.VoiceStateChanged(snapshot)
}
