package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/stt"
	"github.com/user/voice-journal/internal/tts/elevenlabs"
)

// Interviewer generates questions and journal prose.
type Interviewer interface {
	NextQuestion(ctx context.Context, systemPrompt string, messages []domain.ChatMessage) (string, error)
	Reformat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// VoiceService covers the speech synthesis provider.
type VoiceService interface {
	Configured() bool
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	Voices(ctx context.Context) ([]elevenlabs.Voice, error)
	ScribeToken(ctx context.Context) (string, error)
}

// Deps are the upstream providers. A nil Interviewer or Transcriber means
// the matching credential is not configured.
type Deps struct {
	Interviewer Interviewer
	Voice       VoiceService
	Transcriber stt.Transcriber
}

type Server struct {
	echo *echo.Echo
	deps Deps
}

func New(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("20M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("HTTP request")
			return nil
		},
	}))

	s := &Server{echo: e, deps: deps}
	s.register()
	return s
}

func (s *Server) register() {
	s.echo.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	api := s.echo.Group("/api")
	api.POST("/interviewer", s.interviewer)
	api.POST("/voice", s.voice)
	api.POST("/transcribe", s.transcribe)
	api.GET("/voices", s.voices)
	api.GET("/scribe-token", s.scribeToken)
	api.POST("/reformat", s.reformat)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("Starting proxy server")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: message})
}

func notConfigured(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: message})
}

// upstreamFailure maps provider errors to a 500 with the most readable
// message available.
func upstreamFailure(c echo.Context, err error) error {
	var upstream *elevenlabs.UpstreamError
	message := err.Error()
	if errors.As(err, &upstream) {
		message = upstream.Message
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("Upstream request failed")
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: message})
}
