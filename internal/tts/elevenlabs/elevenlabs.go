package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultAPIBase = "https://api.elevenlabs.io"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModel   = "eleven_multilingual_v2"
)

var ErrNotConfigured = errors.New("ELEVENLABS_API_KEY is not configured")

// UpstreamError is a non-2xx answer from ElevenLabs.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("elevenlabs error %d: %s", e.Status, e.Message)
}

func NewUpstreamError(status int, body []byte) *UpstreamError {
	return &UpstreamError{Status: status, Message: ExtractErrorMessage(body, status)}
}

// ExtractErrorMessage picks the most readable message out of an upstream
// error payload: detail.message, a detail string, error.message, message,
// then the raw body.
func ExtractErrorMessage(body []byte, status int) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := messageFrom(payload.Detail); msg != "" {
			return msg
		}
		if msg := messageFrom(payload.Error); msg != "" {
			return msg
		}
		if strings.TrimSpace(payload.Message) != "" {
			return strings.TrimSpace(payload.Message)
		}
	}

	if raw := strings.TrimSpace(string(body)); raw != "" {
		return raw
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}

type Config struct {
	APIKey         string
	APIBaseURL     string
	DefaultVoiceID string
	Model          string
}

// Client talks to the ElevenLabs REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBase
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.DefaultVoiceID == "" {
		cfg.DefaultVoiceID = DefaultVoiceID
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

func (c *Client) DefaultVoiceID() string {
	return c.cfg.DefaultVoiceID
}

// Do sends an authenticated request and returns the body of a 2xx answer.
func (c *Client) Do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := NewUpstreamError(resp.StatusCode, data)
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("path", path).
			Str("message", upstream.Message).
			Msg("ElevenLabs API error response")
		return nil, upstream
	}

	return data, nil
}

// Synthesize renders text to mp3 with the given voice, or the default voice
// when voiceID is empty.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(voiceID) == "" {
		voiceID = c.cfg.DefaultVoiceID
	}

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": c.cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode synthesis request: %w", err)
	}

	path := "/v1/text-to-speech/" + url.PathEscape(voiceID) + "?output_format=mp3_44100_128"
	audio, err := c.Do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}

	log.Debug().
		Str("voice_id", voiceID).
		Int("text_length", len(text)).
		Int("audio_bytes", len(audio)).
		Msg("Synthesized speech")

	return audio, nil
}

// ScribeToken issues a single-use token for the realtime speech-to-text socket.
func (c *Client) ScribeToken(ctx context.Context) (string, error) {
	data, err := c.Do(ctx, http.MethodPost, "/v1/single-use-token/realtime_scribe", "", nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("ElevenLabs returned an empty token")
	}
	return result.Token, nil
}
