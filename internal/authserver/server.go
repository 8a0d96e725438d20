package authserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"parley/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Server is the account HTTP surface: register, login and token validation.
type Server struct {
	users  *UserRepo
	tokens *TokenIssuer
	log    *zap.Logger
}

func NewServer(users *UserRepo, tokens *TokenIssuer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{users: users, tokens: tokens, log: log}
}

// Router builds the chi handler with CORS and a per-IP rate limit on the
// credential endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(httprate.LimitByIP(20, time.Minute)).Post("/register", s.handleRegister)
		r.With(httprate.LimitByIP(20, time.Minute)).Post("/login", s.handleLogin)
		r.Get("/me", s.handleMe)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if reason := validateRegistration(req.Name, req.Email, req.Password); reason != "" {
		writeFailure(w, http.StatusBadRequest, reason)
		return
	}

	user, err := s.users.Create(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			writeFailure(w, http.StatusConflict, "Email already registered")
			return
		}
		s.log.Error("register failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	s.issueSession(w, http.StatusCreated, user, req.Remember)
	s.log.Info("user registered", zap.String("user_id", user.ID))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			writeFailure(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.log.Error("login failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s.issueSession(w, http.StatusOK, user, req.Remember)
	s.log.Info("user logged in", zap.String("user_id", user.ID))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeFailure(w, http.StatusUnauthorized, "Missing token")
		return
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	user, err := s.users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeFailure(w, http.StatusNotFound, "User not found")
			return
		}
		s.log.Error("me lookup failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (s *Server) issueSession(w http.ResponseWriter, status int, user domain.User, remember bool) {
	token, err := s.tokens.Issue(user, remember)
	if err != nil {
		s.log.Error("token signing failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Token issuance failed")
		return
	}
	writeJSON(w, status, map[string]any{"success": true, "user": user, "token": token})
}

func validateRegistration(name, email, password string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	switch {
	case name == "" || email == "" || password == "":
		return "All fields are required"
	case len(name) > 50:
		return "Name must be 50 characters or less"
	case !emailPattern.MatchString(email):
		return "Please enter a valid email address"
	case len(password) < 6:
		return "Password must be at least 6 characters"
	}
	return ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]any{"success": false, "error": reason})
}
