package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"parley/internal/domain"
)

// Per-operation failure categories. Network and non-2xx failures carry the
// same sentinel; callers treat both as fatal to the current turn.
var (
	ErrTranscription = errors.New("transcription failed")
	ErrConversation  = errors.New("conversation failed")
	ErrSynthesis     = errors.New("speech synthesis failed")
	ErrHealth        = errors.New("health check failed")
	ErrGrammar       = errors.New("grammar check failed")
)

// Client is a stateless wrapper over the voice backend HTTP contract. It
// never retries; every method is a single request/response and is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Transcribe uploads recorded WAV audio and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var payload struct {
		Text string `json:"text"`
	}
	if err := c.do(req, ErrTranscription, &payload); err != nil {
		return "", err
	}
	return payload.Text, nil
}

// Converse sends one committed utterance and returns the AI reply.
func (c *Client) Converse(ctx context.Context, text string) (domain.Exchange, error) {
	req, err := c.jsonRequest(ctx, "/api/conversation", text)
	if err != nil {
		return domain.Exchange{}, fmt.Errorf("%w: %v", ErrConversation, err)
	}

	var payload struct {
		Response string `json:"response"`
		Input    string `json:"input"`
	}
	if err := c.do(req, ErrConversation, &payload); err != nil {
		return domain.Exchange{}, err
	}
	return domain.Exchange{Response: payload.Response, Input: payload.Input}, nil
}

// Synthesize converts text to speech and returns the raw audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req, err := c.jsonRequest(ctx, "/api/speak", text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrSynthesis, responseDetail(resp))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", ErrSynthesis)
	}
	return audio, nil
}

// Health reports backend availability. Diagnostics only; the voice loop never
// calls this.
func (c *Client) Health(ctx context.Context) (domain.BackendHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return domain.BackendHealth{}, fmt.Errorf("%w: %v", ErrHealth, err)
	}

	var health domain.BackendHealth
	if err := c.do(req, ErrHealth, &health); err != nil {
		return domain.BackendHealth{}, err
	}
	return health, nil
}

// CheckGrammar runs the backend grammar tool over text. Debug surface only.
func (c *Client) CheckGrammar(ctx context.Context, text string) (domain.GrammarReport, error) {
	req, err := c.jsonRequest(ctx, "/api/grammar-check", text)
	if err != nil {
		return domain.GrammarReport{}, fmt.Errorf("%w: %v", ErrGrammar, err)
	}

	var report domain.GrammarReport
	if err := c.do(req, ErrGrammar, &report); err != nil {
		return domain.GrammarReport{}, err
	}
	return report, nil
}

func (c *Client) jsonRequest(ctx context.Context, path string, text string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, sentinel error, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", sentinel, responseDetail(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", sentinel, err)
	}
	return nil
}

func responseDetail(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, detail)
}
