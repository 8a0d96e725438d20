package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"parley/internal/domain"
)

// ErrUnauthorized marks a 401 from the auth server: the token is missing,
// malformed or expired. The store clears the persisted session on it.
var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the auth server. Like the voice backend client it is
// stateless, never retries and is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type authPayload struct {
	Success bool        `json:"success"`
	User    domain.User `json:"user"`
	Token   string      `json:"token"`
	Error   string      `json:"error"`
}

// Register creates an account and returns the issued session.
func (c *Client) Register(ctx context.Context, name, email, password string) (domain.Session, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	payload, err := c.post(ctx, "/api/auth/register", body)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Token: payload.Token, User: payload.User}, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	payload, err := c.post(ctx, "/api/auth/login", body)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Token: payload.Token, User: payload.User}, nil
}

// Me validates the token and returns the current account state.
func (c *Client) Me(ctx context.Context, token string) (domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/me", nil)
	if err != nil {
		return domain.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	payload, err := c.send(req)
	if err != nil {
		return domain.User{}, err
	}
	return payload.User, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]string) (authPayload, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return authPayload{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return authPayload{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *Client) send(req *http.Request) (authPayload, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return authPayload{}, err
	}
	defer resp.Body.Close()

	var payload authPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil && resp.StatusCode < 300 {
		return authPayload{}, fmt.Errorf("decode response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return authPayload{}, fmt.Errorf("%w: %s", ErrUnauthorized, failureReason(payload, resp))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return authPayload{}, errors.New(failureReason(payload, resp))
	}
	return payload, nil
}

func failureReason(payload authPayload, resp *http.Response) string {
	if payload.Error != "" {
		return payload.Error
	}
	return resp.Status
}
