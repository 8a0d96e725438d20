package domain

import "time"

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message is one committed conversation turn entry. Messages are immutable
// once created and only ever appended, never reordered.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// VoiceState is the live voice loop state rendered by the UI. In the steady
// protocol at most one of the three flags is true at a time; CurrentTranscript
// is non-empty only while listening.
type VoiceState struct {
	IsListening       bool   `json:"isListening"`
	IsProcessing      bool   `json:"isProcessing"`
	IsSpeaking        bool   `json:"isSpeaking"`
	CurrentTranscript string `json:"currentTranscript"`
}

// FragmentKind identifies whether a capture fragment is revisable interim
// text or committed final text.
type FragmentKind string

const (
	FragmentPartial FragmentKind = "partial"
	FragmentFinal   FragmentKind = "final"
)

// Fragment is one transcript segment pushed by the active capture source.
type Fragment struct {
	Kind FragmentKind `json:"kind"`
	Text string       `json:"text"`
}

// CaptureKind identifies which capture mechanism produced the session.
type CaptureKind string

const (
	CaptureNativeRecognizer   CaptureKind = "native_recognizer"
	CaptureMicrophoneRecorder CaptureKind = "microphone_recorder"
)

// ErrorCode identifies voice loop and auth failures surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup            ErrorCode = "startup"
	ErrorCodeCaptureUnavailable ErrorCode = "capture_unavailable"
	ErrorCodeCaptureStream      ErrorCode = "capture_stream"
	ErrorCodeTranscription      ErrorCode = "transcription"
	ErrorCodeConversation       ErrorCode = "conversation"
	ErrorCodeSynthesis          ErrorCode = "synthesis"
	ErrorCodePlayback           ErrorCode = "playback"
	ErrorCodeAuth               ErrorCode = "auth"
)

// Exchange is one completed conversation round trip with the backend.
type Exchange struct {
	Response string `json:"response"`
	Input    string `json:"input"`
}

// BackendHealth is the diagnostics payload from the voice backend.
type BackendHealth struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GrammarReport is the backend grammar-check result, used by the debug
// surface only.
type GrammarReport struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	HasErrors bool   `json:"has_errors"`
}

// User is the authenticated account identity, never including credentials.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session pairs the opaque bearer token with the user it was issued for.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AuthResult is how auth operations report back to the UI. Failures are
// carried as a short human-readable string, never as a thrown error.
type AuthResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
