package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/domain"
)

// APIError is a non-2xx answer from the proxy.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// MalformedResponseError is a 2xx answer whose body is empty or does not
// have the expected shape.
type MalformedResponseError struct {
	Endpoint string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %s", e.Endpoint, e.Reason)
}

type Voice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// Client calls the voice-journal proxy. It implements the session's
// dialogue, synthesis and token ports.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) NextQuestion(ctx context.Context, systemPrompt string, transcript []domain.Entry) (string, error) {
	var out struct {
		Question *string `json:"question"`
	}
	req := map[string]any{
		"systemPrompt": systemPrompt,
		"messages":     domain.ChatMessagesFromTranscript(transcript),
	}
	if err := c.call(ctx, http.MethodPost, "/api/interviewer", req, &out); err != nil {
		return "", err
	}
	if out.Question == nil || strings.TrimSpace(*out.Question) == "" {
		return "", &MalformedResponseError{Endpoint: "/api/interviewer", Reason: "missing question"}
	}
	return strings.TrimSpace(*out.Question), nil
}

func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	var out struct {
		Audio  *string `json:"audio"`
		Format string  `json:"format"`
	}
	req := map[string]any{"text": text}
	if voiceID != "" {
		req["voiceId"] = voiceID
	}
	if err := c.call(ctx, http.MethodPost, "/api/voice", req, &out); err != nil {
		return nil, err
	}
	if out.Audio == nil || *out.Audio == "" {
		return nil, &MalformedResponseError{Endpoint: "/api/voice", Reason: "missing audio"}
	}

	audio, err := base64.StdEncoding.DecodeString(*out.Audio)
	if err != nil {
		return nil, &MalformedResponseError{Endpoint: "/api/voice", Reason: "audio is not base64"}
	}
	return audio, nil
}

func (c *Client) ScribeToken(ctx context.Context) (string, error) {
	var out struct {
		Token *string `json:"token"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/scribe-token", nil, &out); err != nil {
		return "", err
	}
	if out.Token == nil || *out.Token == "" {
		return "", &MalformedResponseError{Endpoint: "/api/scribe-token", Reason: "missing token"}
	}
	return *out.Token, nil
}

func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/voices", nil, &out); err != nil {
		return nil, err
	}
	if len(out.Voices) == 0 {
		return nil, &MalformedResponseError{Endpoint: "/api/voices", Reason: "empty voice list"}
	}
	return out.Voices, nil
}

func (c *Client) Reformat(ctx context.Context, transcript []domain.Entry) (string, error) {
	var out struct {
		Text *string `json:"text"`
	}
	req := map[string]any{"messages": domain.ChatMessagesFromTranscript(transcript)}
	if err := c.call(ctx, http.MethodPost, "/api/reformat", req, &out); err != nil {
		return "", err
	}
	if out.Text == nil {
		return "", &MalformedResponseError{Endpoint: "/api/reformat", Reason: "missing text"}
	}
	return *out.Text, nil
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	var out struct {
		Text *string `json:"text"`
	}
	req := map[string]any{
		"audio":  base64.StdEncoding.EncodeToString(audio),
		"format": format,
	}
	if err := c.call(ctx, http.MethodPost, "/api/transcribe", req, &out); err != nil {
		return "", err
	}
	if out.Text == nil {
		return "", &MalformedResponseError{Endpoint: "/api/transcribe", Reason: "missing text"}
	}
	return *out.Text, nil
}

// call performs one request. It returns nil after decoding a 2xx body into
// out, *APIError for non-2xx answers and *MalformedResponseError for 2xx
// answers that cannot be decoded.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &MalformedResponseError{Endpoint: path, Reason: "empty body"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &MalformedResponseError{Endpoint: path, Reason: err.Error()}
	}
	return nil
}

func errorMessage(data []byte, status int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if raw := strings.TrimSpace(string(data)); raw != "" {
		return raw
	}
	return http.StatusText(status)
}
