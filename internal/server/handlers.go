package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/stt"
	"github.com/user/voice-journal/internal/stt/deepgram"
	"github.com/user/voice-journal/internal/tts/elevenlabs"
)

const (
	msgGenAINotConfigured      = "GENAI_API_KEY is not configured"
	msgElevenLabsNotConfigured = "ELEVENLABS_API_KEY is not configured"
	msgTranscribeNotConfigured = "transcription backend is not configured"
)

type interviewerRequest struct {
	SystemPrompt string               `json:"systemPrompt"`
	Messages     []domain.ChatMessage `json:"messages"`
}

type interviewerResponse struct {
	Question string `json:"question"`
}

type voiceRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

type voiceResponse struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

type transcribeRequest struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

type textResponse struct {
	Text string `json:"text"`
}

type voicesResponse struct {
	Voices []elevenlabs.Voice `json:"voices"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type reformatRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

func (s *Server) interviewer(c echo.Context) error {
	if s.deps.Interviewer == nil {
		return notConfigured(c, msgGenAINotConfigured)
	}

	var req interviewerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if err := validateMessages(req.Messages); err != nil {
		return badRequest(c, err.Error())
	}

	question, err := s.deps.Interviewer.NextQuestion(c.Request().Context(), req.SystemPrompt, req.Messages)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return c.JSON(http.StatusOK, interviewerResponse{Question: question})
}

func (s *Server) reformat(c echo.Context) error {
	if s.deps.Interviewer == nil {
		return notConfigured(c, msgGenAINotConfigured)
	}

	var req reformatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if err := validateMessages(req.Messages); err != nil {
		return badRequest(c, err.Error())
	}

	text, err := s.deps.Interviewer.Reformat(c.Request().Context(), req.Messages)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return c.JSON(http.StatusOK, textResponse{Text: text})
}

func (s *Server) voice(c echo.Context) error {
	if s.deps.Voice == nil || !s.deps.Voice.Configured() {
		return notConfigured(c, msgElevenLabsNotConfigured)
	}

	var req voiceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return badRequest(c, "text is required")
	}

	audio, err := s.deps.Voice.Synthesize(c.Request().Context(), req.Text, req.VoiceID)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return c.JSON(http.StatusOK, voiceResponse{
		Audio:  base64.StdEncoding.EncodeToString(audio),
		Format: "mp3",
	})
}

func (s *Server) voices(c echo.Context) error {
	if s.deps.Voice == nil || !s.deps.Voice.Configured() {
		return notConfigured(c, msgElevenLabsNotConfigured)
	}

	voices, err := s.deps.Voice.Voices(c.Request().Context())
	if err != nil {
		return upstreamFailure(c, err)
	}
	return c.JSON(http.StatusOK, voicesResponse{Voices: voices})
}

func (s *Server) scribeToken(c echo.Context) error {
	if s.deps.Voice == nil || !s.deps.Voice.Configured() {
		return notConfigured(c, msgElevenLabsNotConfigured)
	}

	token, err := s.deps.Voice.ScribeToken(c.Request().Context())
	if err != nil {
		return upstreamFailure(c, err)
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (s *Server) transcribe(c echo.Context) error {
	if s.deps.Transcriber == nil {
		return notConfigured(c, msgTranscribeNotConfigured)
	}

	var req transcribeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if req.Audio == "" {
		return badRequest(c, "audio is required")
	}

	data, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return badRequest(c, "audio must be base64 encoded")
	}
	if len(data) < stt.MinAudioBytes {
		return badRequest(c, stt.ErrAudioTooShort.Error())
	}

	text, err := s.deps.Transcriber.Transcribe(c.Request().Context(), data, req.Format)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, textResponse{Text: text})
	case errors.Is(err, stt.ErrUnsupportedFormat):
		return badRequest(c, err.Error())
	case errors.Is(err, deepgram.ErrNotConfigured), errors.Is(err, elevenlabs.ErrNotConfigured):
		return notConfigured(c, err.Error())
	default:
		var dgErr *deepgram.APIError
		if errors.As(err, &dgErr) {
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: dgErr.Message})
		}
		return upstreamFailure(c, err)
	}
}

func validateMessages(messages []domain.ChatMessage) error {
	if len(messages) == 0 {
		return errors.New("messages must be a non-empty array")
	}
	for i, msg := range messages {
		if msg.Role != domain.RoleUser && msg.Role != domain.RoleAI {
			return fmt.Errorf("messages[%d].role must be 'user' or 'ai'", i)
		}
	}
	return nil
}
