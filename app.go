package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"parley/internal/bootstrap"
	"parley/internal/config"
	"parley/internal/conversation"
	"parley/internal/domain"
	"parley/internal/session"
	"parley/internal/voice"
)

const (
	eventVoice   = "parley:voice"
	eventMessage = "parley:message"
	eventCleared = "parley:cleared"
	eventError   = "parley:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *voice.Controller
	state      *conversation.State
	session    *session.Store
	backend    backendDiagnostics
	cfg        config.Config
	bootErr    error
}

type backendDiagnostics interface {
	Health(ctx context.Context) (domain.BackendHealth, error)
	CheckGrammar(ctx context.Context, text string) (domain.GrammarReport, error)
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.VoiceError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.state = services.State
	a.session = services.Session
	a.backend = services.Backend
	a.VoiceStateChanged(a.state.Voice())
}

// StartListening acquires a capture source and begins a voice turn.
func (a *App) StartListening() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Start(a.ctx)
}

// StopListening halts the active capture source. Safe to call when idle.
func (a *App) StopListening() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.Stop()
	return nil
}

// ClearConversation empties the message history.
func (a *App) ClearConversation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.Clear()
	return nil
}

// Messages returns the conversation history in insertion order.
func (a *App) Messages() []domain.Message {
	if a.state == nil {
		return nil
	}
	return a.state.Messages()
}

// VoiceState returns the current listening/processing/speaking snapshot.
func (a *App) VoiceState() domain.VoiceState {
	if a.state == nil {
		return domain.VoiceState{}
	}
	return a.state.Voice()
}

// Login authenticates with the account server.
func (a *App) Login(email, password string) domain.AuthResult {
	if err := a.requireReady(); err != nil {
		return domain.AuthResult{Success: false, Error: err.Error()}
	}
	return a.session.Login(a.ctx, email, password)
}

// Signup registers a new account.
func (a *App) Signup(name, email, password string) domain.AuthResult {
	if err := a.requireReady(); err != nil {
		return domain.AuthResult{Success: false, Error: err.Error()}
	}
	return a.session.Signup(a.ctx, name, email, password)
}

// Logout drops the current session.
func (a *App) Logout() {
	if a.session != nil {
		a.session.Logout()
	}
}

// CheckAuth revalidates the persisted session token.
func (a *App) CheckAuth() bool {
	if a.session == nil {
		return false
	}
	return a.session.CheckAuth(a.ctx)
}

// CurrentUser returns the authenticated user, if any.
func (a *App) CurrentUser() (domain.User, bool) {
	if a.session == nil {
		return domain.User{}, false
	}
	current, ok := a.session.Session()
	return current.User, ok
}

// Theme returns the persisted UI theme preference.
func (a *App) Theme() string {
	if a.session == nil {
		return "light"
	}
	return a.session.Theme()
}

// SetTheme persists the UI theme preference.
func (a *App) SetTheme(theme string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.session.SetTheme(theme)
}

// BackendStatus probes the voice backend. Diagnostics only.
func (a *App) BackendStatus() domain.BackendHealth {
	if err := a.requireReady(); err != nil {
		return domain.BackendHealth{Status: "unreachable", Message: err.Error()}
	}
	health, err := a.backend.Health(a.ctx)
	if err != nil {
		return domain.BackendHealth{Status: "unreachable", Message: err.Error()}
	}
	return health
}

// CheckGrammar runs the backend grammar tool over text. Debug surface only.
func (a *App) CheckGrammar(text string) (domain.GrammarReport, error) {
	if err := a.requireReady(); err != nil {
		return domain.GrammarReport{}, err
	}
	return a.backend.CheckGrammar(a.ctx, text)
}

// RuntimeInfo returns non-sensitive config for the UI.
func (a *App) RuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backendUrl":       a.cfg.Backend.BaseURL,
		"authUrl":          a.cfg.Auth.BaseURL,
		"recognizerModel":  a.cfg.Recognizer.Model,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"localSpeech":      a.cfg.Speech.LocalCommand,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// VoiceStateChanged emits listening/processing/speaking updates to the frontend.
func (a *App) VoiceStateChanged(state domain.VoiceState) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventVoice, state)
}

// MessageAppended emits a finalized conversation message.
func (a *App) MessageAppended(message domain.Message) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventMessage, message)
}

// MessagesCleared notifies the frontend the history was emptied.
func (a *App) MessagesCleared() {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCleared)
}

// VoiceError emits voice loop errors to the UI.
func (a *App) VoiceError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCaptureUnavailable:
		return "Microphone unavailable"
	case domain.ErrorCodeCaptureStream:
		return "Capture stream issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeConversation:
		return "Conversation request failed"
	case domain.ErrorCodeSynthesis:
		return "Speech synthesis failed"
	case domain.ErrorCodePlayback:
		return "Audio playback issue"
	case domain.ErrorCodeAuth:
		return "Authentication failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
