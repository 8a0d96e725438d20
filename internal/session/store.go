package session

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"

	"parley/internal/domain"
)

// Storage keys inside the local KV store. Session and theme persist across
// restarts; conversation state deliberately does not.
const (
	authKey  = "auth-storage"
	themeKey = "theme-storage"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthAPI is the slice of the auth server the store needs.
type AuthAPI interface {
	Register(ctx context.Context, name, email, password string) (domain.Session, error)
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Me(ctx context.Context, token string) (domain.User, error)
}

// KV is the durable storage the session and theme survive restarts in.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Store holds the single authenticated session. Credentials are validated
// before any network call; auth failures come back as result values, never
// as panics or errors crossing into the voice loop.
type Store struct {
	api AuthAPI
	kv  KV

	mu      sync.Mutex
	session *domain.Session
}

// NewStore restores any persisted session from the KV store. A corrupt
// record is treated as logged out.
func NewStore(api AuthAPI, kv KV) *Store {
	s := &Store{api: api, kv: kv}

	raw, err := kv.Get(authKey)
	if err != nil {
		return s
	}
	var restored domain.Session
	if err := json.Unmarshal(raw, &restored); err != nil || restored.Token == "" {
		return s
	}
	s.session = &restored
	return s
}

// Login exchanges credentials for a session and persists it.
func (s *Store) Login(ctx context.Context, email, password string) domain.AuthResult {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return failure("Email and password are required")
	}
	if !emailPattern.MatchString(email) {
		return failure("Please enter a valid email address")
	}

	session, err := s.api.Login(ctx, email, password)
	if err != nil {
		return failure(reasonOf(err))
	}

	s.adopt(session)
	return domain.AuthResult{Success: true}
}

// Signup validates the new account fields locally, then registers and
// persists the issued session.
func (s *Store) Signup(ctx context.Context, name, email, password string) domain.AuthResult {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	switch {
	case name == "" || email == "" || password == "":
		return failure("All fields are required")
	case len(name) > 50:
		return failure("Name must be 50 characters or less")
	case !emailPattern.MatchString(email):
		return failure("Please enter a valid email address")
	case len(password) < 6:
		return failure("Password must be at least 6 characters")
	}

	session, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		return failure(reasonOf(err))
	}

	s.adopt(session)
	return domain.AuthResult{Success: true}
}

// Logout drops the session and its persisted record.
func (s *Store) Logout() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	_ = s.kv.Delete(authKey)
}

// CheckAuth revalidates the persisted token against the auth server. An
// unauthorized response clears the session; network failures keep it, since
// the token may still be good.
func (s *Store) CheckAuth(ctx context.Context) bool {
	s.mu.Lock()
	current := s.session
	s.mu.Unlock()

	if current == nil {
		return false
	}

	user, err := s.api.Me(ctx, current.Token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.Logout()
		}
		return !errors.Is(err, ErrUnauthorized)
	}

	s.adopt(domain.Session{Token: current.Token, User: user})
	return true
}

// Session returns the current session, if any.
func (s *Store) Session() (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domain.Session{}, false
	}
	return *s.session, true
}

// Authenticated reports whether a session is held.
func (s *Store) Authenticated() bool {
	_, ok := s.Session()
	return ok
}

// Theme returns the persisted UI theme, defaulting to "light".
func (s *Store) Theme() string {
	raw, err := s.kv.Get(themeKey)
	if err != nil || len(raw) == 0 {
		return "light"
	}
	return string(raw)
}

// SetTheme persists the UI theme preference.
func (s *Store) SetTheme(theme string) error {
	return s.kv.Set(themeKey, []byte(theme))
}

func (s *Store) adopt(session domain.Session) {
	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()

	if raw, err := json.Marshal(session); err == nil {
		_ = s.kv.Set(authKey, raw)
	}
}

func failure(reason string) domain.AuthResult {
	return domain.AuthResult{Success: false, Error: reason}
}

func reasonOf(err error) string {
	if errors.Is(err, ErrUnauthorized) {
		detail := strings.TrimPrefix(err.Error(), ErrUnauthorized.Error()+": ")
		if detail != "" {
			return detail
		}
	}
	return err.Error()
}
