package authserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"parley/internal/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := OpenUserRepo(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open repo failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	server := NewServer(repo, NewTokenIssuer("test-secret"), nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()

	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return resp, payload
}

func TestRegisterIssuesSession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, payload := postJSON(t, ts.URL+"/api/auth/register", map[string]any{
		"name": "Ada", "email": "Ada@Example.com", "password": "secret1",
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", resp.StatusCode, payload)
	}
	if payload["token"] == "" || payload["token"] == nil {
		t.Fatalf("expected token in response")
	}
	user := payload["user"].(map[string]any)
	if user["email"] != "ada@example.com" {
		t.Fatalf("expected lowercased email, got %v", user["email"])
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	cases := []struct {
		name   string
		body   map[string]any
		reason string
	}{
		{"missing fields", map[string]any{"email": "a@b.co", "password": "secret1"}, "All fields are required"},
		{"bad email", map[string]any{"name": "Ada", "email": "bad", "password": "secret1"}, "Please enter a valid email address"},
		{"short password", map[string]any{"name": "Ada", "email": "a@b.co", "password": "123"}, "Password must be at least 6 characters"},
	}

	for _, tc := range cases {
		resp, payload := postJSON(t, ts.URL+"/api/auth/register", tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
		if payload["error"] != tc.reason {
			t.Fatalf("%s: unexpected reason %v", tc.name, payload["error"])
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	body := map[string]any{"name": "Ada", "email": "ada@example.com", "password": "secret1"}

	if resp, _ := postJSON(t, ts.URL+"/api/auth/register", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register failed: %d", resp.StatusCode)
	}
	resp, payload := postJSON(t, ts.URL+"/api/auth/register", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if payload["error"] != "Email already registered" {
		t.Fatalf("unexpected reason: %v", payload["error"])
	}
}

func TestLoginRoundTrip(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	postJSON(t, ts.URL+"/api/auth/register", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "secret1",
	})

	resp, payload := postJSON(t, ts.URL+"/api/auth/login", map[string]any{
		"email": "ada@example.com", "password": "secret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, payload)
	}

	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("expected token")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	meResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me request failed: %v", err)
	}
	defer meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from me, got %d", meResp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	postJSON(t, ts.URL+"/api/auth/register", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "secret1",
	})

	resp, payload := postJSON(t, ts.URL+"/api/auth/login", map[string]any{
		"email": "ada@example.com", "password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if payload["error"] != "Invalid email or password" {
		t.Fatalf("unexpected reason: %v", payload["error"])
	}
}

func TestLoginUnknownEmailSameReason(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, payload := postJSON(t, ts.URL+"/api/auth/login", map[string]any{
		"email": "nobody@example.com", "password": "secret1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if payload["error"] != "Invalid email or password" {
		t.Fatalf("unknown email must not be distinguishable: %v", payload["error"])
	}
}

func TestMeRejectsMissingAndGarbageTokens(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/auth/me")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
}

func TestMeUserGone(t *testing.T) {
	t.Parallel()

	repo, err := OpenUserRepo(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open repo failed: %v", err)
	}
	defer repo.Close()

	issuer := NewTokenIssuer("test-secret")
	token, err := issuer.Issue(domain.User{ID: "gone", Email: "gone@example.com", Name: "Gone"}, false)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	ts := httptest.NewServer(NewServer(repo, issuer, nil).Router())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted user, got %d", resp.StatusCode)
	}
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret")
	issuer.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }

	token, err := issuer.Issue(domain.User{ID: "u1"}, false)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	verifier := NewTokenIssuer("test-secret")
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}

	// The 30-day remember variant is still inside its window.
	remembered, err := issuer.Issue(domain.User{ID: "u1"}, true)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := verifier.Verify(remembered); err != nil {
		t.Fatalf("remember token should still verify: %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	t.Parallel()

	token, err := NewTokenIssuer("secret-a").Issue(domain.User{ID: "u1"}, false)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := NewTokenIssuer("secret-b").Verify(token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestUserRepoStoresHashedPasswords(t *testing.T) {
	t.Parallel()

	repo, err := OpenUserRepo(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open repo failed: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if _, err := repo.Create(ctx, "Ada", "ada@example.com", "secret1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var hash string
	row := repo.db.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, "ada@example.com")
	if err := row.Scan(&hash); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if hash == "secret1" || hash == "" {
		t.Fatalf("password must be stored hashed")
	}

	if _, err := repo.Authenticate(ctx, "ada@example.com", "secret1"); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
}
