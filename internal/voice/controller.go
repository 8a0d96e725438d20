package voice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"parley/internal/backend"
	"parley/internal/conversation"
	"parley/internal/domain"
	"parley/internal/ports"
)

// ErrCaptureUnavailable means no capture mechanism could be acquired, e.g.
// the microphone is missing or permission was denied.
var ErrCaptureUnavailable = errors.New("no capture source available")

// User-facing messages for failures inside the voice loop. The loop never
// raises past the controller; it resets state or speaks through history.
const (
	captureApology       = "Error accessing microphone. Please check your permissions."
	conversationFallback = "Sorry, I encountered an error processing your request. Please try again."
	transcriptionApology = "Sorry, I couldn't understand what you said. Please try again."
)

// Controller drives the listen/think/speak loop: it owns the single active
// capture source, commits final utterances into conversation state, runs the
// backend exchange and sequences speech playback so the listening, processing
// and speaking flags never overlap.
type Controller struct {
	providers []ports.CaptureProvider
	convo     ports.ConversationClient
	speech    ports.SpeechSink
	state     *conversation.State
	events    ports.EventSink

	mu      sync.Mutex
	current *activeCapture
}

func NewController(
	providers []ports.CaptureProvider,
	convo ports.ConversationClient,
	speech ports.SpeechSink,
	state *conversation.State,
	events ports.EventSink,
) *Controller {
	return &Controller{
		providers: providers,
		convo:     convo,
		speech:    speech,
		state:     state,
		events:    events,
	}
}

type activeCapture struct {
	session ports.CaptureSession
	kind    domain.CaptureKind
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

func (a *activeCapture) markStopped() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
}

func (a *activeCapture) stopRequested() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// Start acquires a capture source and begins listening. Calling Start while
// already listening is a no-op, not an error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	provider := firstAvailable(c.providers)
	if provider == nil {
		c.failCapture(ErrCaptureUnavailable)
		return ErrCaptureUnavailable
	}

	session, err := provider.Start(ctx)
	if err != nil {
		c.failCapture(err)
		return ErrCaptureUnavailable
	}

	active := &activeCapture{
		session: session,
		kind:    provider.Kind(),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.current != nil {
		// Lost the race against a concurrent Start; keep the winner.
		c.mu.Unlock()
		_ = session.Stop()
		return nil
	}
	c.current = active
	c.mu.Unlock()

	c.state.SetListening(true)
	go c.consume(ctx, active)
	return nil
}

// Stop requests the active capture source to halt. Idempotent; it never
// cancels an in-flight exchange or playback, but listening and the interim
// transcript are cleared immediately.
func (c *Controller) Stop() {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()

	if active == nil {
		c.state.SetListening(false)
		return
	}

	active.markStopped()
	if active.kind == domain.CaptureMicrophoneRecorder {
		// The recorder transcribes on stop; show the thinking state while
		// the backend works.
		c.state.SetProcessing(true)
	}
	c.state.SetListening(false)
	_ = active.session.Stop()
}

// Clear empties the message history. Listening, processing and speaking are
// untouched.
func (c *Controller) Clear() {
	c.state.Clear()
}

// Listening reports whether a capture source is currently active.
func (c *Controller) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// consume processes fragments in emission order. Committing, the exchange and
// playback all run inline here, so no two turn transitions ever race.
func (c *Controller) consume(ctx context.Context, active *activeCapture) {
	defer close(active.done)

	committed := false
	for fragment := range active.session.Fragments() {
		text := strings.TrimSpace(fragment.Text)
		if text == "" {
			continue
		}

		if fragment.Kind == domain.FragmentPartial {
			if !committed && !active.stopRequested() {
				c.state.SetTranscript(fragment.Text)
			}
			continue
		}

		// Only the first final fragment per cycle is committed; recognizer
		// finals arriving after an acknowledged stop are dropped.
		if committed {
			continue
		}
		if active.kind == domain.CaptureNativeRecognizer && active.stopRequested() {
			continue
		}

		committed = true
		c.state.SetTranscript("")
		c.state.SetListening(false)
		c.runTurn(ctx, text)
	}

	err := active.session.Wait()

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	switch {
	case err == nil:
	case errors.Is(err, backend.ErrTranscription):
		c.state.Append(domain.RoleAI, transcriptionApology)
		c.events.VoiceError(domain.ErrorCodeTranscription, err.Error())
	default:
		c.events.VoiceError(domain.ErrorCodeCaptureStream, err.Error())
	}

	if !committed && active.kind == domain.CaptureMicrophoneRecorder {
		c.state.SetProcessing(false)
	}
	c.state.SetListening(false)
}

// runTurn is one utterance-to-reply cycle. Processing always clears before
// speaking begins, whatever the exchange outcome.
func (c *Controller) runTurn(ctx context.Context, text string) {
	c.state.Append(domain.RoleUser, text)
	c.state.SetProcessing(true)

	exchange, err := c.convo.Converse(ctx, text)
	if err != nil {
		c.state.Append(domain.RoleAI, conversationFallback)
		c.state.SetProcessing(false)
		c.events.VoiceError(domain.ErrorCodeConversation, err.Error())
		return
	}

	c.state.Append(domain.RoleAI, exchange.Response)
	c.state.SetProcessing(false)

	c.state.SetSpeaking(true)
	if err := c.speech.Speak(ctx, exchange.Response); err != nil {
		c.events.VoiceError(domain.ErrorCodePlayback, err.Error())
	}
	c.state.SetSpeaking(false)
}

func (c *Controller) failCapture(err error) {
	c.state.SetListening(false)
	c.state.Append(domain.RoleAI, captureApology)
	c.events.VoiceError(domain.ErrorCodeCaptureUnavailable, err.Error())
}

func firstAvailable(providers []ports.CaptureProvider) ports.CaptureProvider {
	for _, provider := range providers {
		if provider != nil && provider.Available() {
			return provider
		}
	}
	return nil
}
