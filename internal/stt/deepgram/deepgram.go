package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNotConfigured = errors.New("DEEPGRAM_API_KEY is not configured")

type DeepgramTranscriber struct {
	apiKey     string
	model      string
	language   string
	punctuate  bool
	baseURL    string
	httpClient *http.Client
}

type DeepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func NewDeepgramTranscriber(apiKey, model, language string) *DeepgramTranscriber {
	return &DeepgramTranscriber{
		apiKey:     apiKey,
		model:      model,
		language:   language,
		punctuate:  true,
		baseURL:    "https://api.deepgram.com/v1/listen",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (d *DeepgramTranscriber) Transcribe(ctx context.Context, data []byte, format string) (string, error) {
	if strings.TrimSpace(d.apiKey) == "" {
		return "", ErrNotConfigured
	}
	if len(data) == 0 {
		return "", nil
	}

	// Build URL with query parameters according to API documentation
	params := url.Values{}
	if d.model != "" {
		params.Set("model", d.model)
	}
	params.Set("punctuate", strconv.FormatBool(d.punctuate))
	params.Set("smart_format", "true")
	if d.language != "" {
		params.Set("language", d.language)
	}

	fullURL := d.baseURL + "?" + params.Encode()

	log.Debug().
		Str("url", fullURL).
		Str("model", d.model).
		Str("format", format).
		Int("audio_size_bytes", len(data)).
		Msg("Making Deepgram API request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType(format))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Deepgram API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("response_body", string(body)).
			Str("url", fullURL).
			Msg("Deepgram API error response")
		return "", &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	var result DeepgramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		log.Warn().
			Str("response_body", string(body)).
			Msg("Failed to parse Deepgram response")
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Results.Channels) == 0 {
		log.Debug().Msg("No channels in Deepgram response")
		return "", nil
	}

	var parts []string
	for _, alternative := range result.Results.Channels[0].Alternatives {
		if alternative.Transcript == "" {
			continue
		}
		parts = append(parts, alternative.Transcript)

		log.Debug().
			Str("transcript", alternative.Transcript).
			Float64("confidence", alternative.Confidence).
			Msg("Received transcription")
		// the first alternative is the best one
		break
	}

	return strings.Join(parts, " "), nil
}

func (d *DeepgramTranscriber) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// APIError is a non-200 answer from Deepgram.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Deepgram API error %d: %s", e.Status, e.Message)
}

func errorMessage(body []byte) string {
	var payload struct {
		ErrMsg  string `json:"err_msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.ErrMsg != "" {
			return payload.ErrMsg
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(body))
}

func contentType(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch {
	case format == "":
		return "audio/*"
	case strings.Contains(format, "/"):
		return format
	case format == "mp3":
		return "audio/mpeg"
	default:
		return "audio/" + format
	}
}
