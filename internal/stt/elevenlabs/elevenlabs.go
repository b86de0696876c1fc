package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	xi "github.com/user/voice-journal/internal/tts/elevenlabs"
)

// ScribeTranscriber sends whole recordings to the batch speech-to-text API.
type ScribeTranscriber struct {
	client   *xi.Client
	modelID  string
	language string
}

func NewScribeTranscriber(client *xi.Client, language string) *ScribeTranscriber {
	return &ScribeTranscriber{
		client:   client,
		modelID:  "scribe_v1",
		language: language,
	}
}

func (s *ScribeTranscriber) Transcribe(ctx context.Context, data []byte, format string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	if err := form.WriteField("model_id", s.modelID); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	if s.language != "" {
		if err := form.WriteField("language_code", s.language); err != nil {
			return "", fmt.Errorf("failed to write form field: %w", err)
		}
	}
	part, err := form.CreateFormFile("file", "audio."+fileExtension(format))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	respBody, err := s.client.Do(ctx, http.MethodPost, "/v1/speech-to-text", form.FormDataContentType(), body)
	if err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	log.Debug().
		Int("audio_bytes", len(data)).
		Int("text_length", len(result.Text)).
		Msg("ElevenLabs transcription completed")

	return strings.TrimSpace(result.Text), nil
}

func (s *ScribeTranscriber) Close() error {
	return nil
}

func fileExtension(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if i := strings.Index(format, "/"); i >= 0 {
		format = format[i+1:]
	}
	if i := strings.Index(format, ";"); i >= 0 {
		format = format[:i]
	}
	switch format {
	case "":
		return "webm"
	case "mpeg":
		return "mp3"
	case "x-wav", "wave":
		return "wav"
	default:
		return format
	}
}
