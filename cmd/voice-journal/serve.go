package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/voice-journal/internal/audio"
	"github.com/user/voice-journal/internal/dialogue/gemini"
	"github.com/user/voice-journal/internal/server"
	"github.com/user/voice-journal/internal/stt"
	"github.com/user/voice-journal/internal/stt/deepgram"
	scribe "github.com/user/voice-journal/internal/stt/elevenlabs"
	"github.com/user/voice-journal/internal/stt/vosk"
	"github.com/user/voice-journal/internal/tts/elevenlabs"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy that holds the upstream credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	deps := server.Deps{}

	if cfg.GenAIAPIKey != "" {
		interviewer, err := gemini.NewInterviewer(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.GenAIMaxOutputTokens)
		if err != nil {
			return fmt.Errorf("failed to create interviewer: %w", err)
		}
		defer interviewer.Close()
		deps.Interviewer = interviewer
	} else {
		log.Warn().Msg("GENAI_API_KEY not set, interviewer endpoints disabled")
	}

	voice := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:         cfg.ElevenLabsAPIKey,
		APIBaseURL:     cfg.ElevenLabsAPIBase,
		DefaultVoiceID: cfg.ElevenLabsDefaultVoiceID,
		Model:          cfg.ElevenLabsTTSModel,
	})
	if !voice.Configured() {
		log.Warn().Msg("ELEVENLABS_API_KEY not set, voice endpoints disabled")
	}
	deps.Voice = voice

	transcriber, err := newTranscriber(voice)
	if err != nil {
		return err
	}
	if transcriber != nil {
		defer transcriber.Close()
		deps.Transcriber = transcriber
	}

	srv := server.New(deps)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(cfg.HTTPAddress)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down proxy server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Proxy server stopped")
	return nil
}

// newTranscriber builds the batch transcription backend behind a worker
// pool. It returns nil when the selected backend has no credentials.
func newTranscriber(voice *elevenlabs.Client) (stt.Transcriber, error) {
	var (
		backend stt.Transcriber
		workers = cfg.TranscribeWorkers
	)

	switch cfg.TranscribeBackend {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			log.Warn().Msg("DEEPGRAM_API_KEY not set, transcription disabled")
			return nil, nil
		}
		backend = deepgram.NewDeepgramTranscriber(cfg.DeepgramAPIKey, cfg.DeepgramTier, cfg.ScribeLanguage)
	case "vosk":
		model, err := vosk.NewVoskTranscriber(cfg.VoskModelPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.VoskModelPath).Msg("Vosk model unavailable, transcription disabled")
			return nil, nil
		}
		backend = model
		// one recognizer at a time keeps memory bounded
		workers = 1
	default:
		if !voice.Configured() {
			return nil, nil
		}
		backend = scribe.NewScribeTranscriber(voice, cfg.ScribeLanguage)
	}

	if cfg.TranscribeSpeechGate {
		detector, err := audio.NewWebRTCVAD()
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to create speech detector: %w", err)
		}
		backend = stt.NewSpeechGate(backend, detector)
	}

	pool := stt.NewTranscriberPool(backend, workers)
	if err := pool.Start(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to start transcriber pool: %w", err)
	}

	log.Info().
		Str("backend", cfg.TranscribeBackend).
		Int("workers", workers).
		Bool("speech_gate", cfg.TranscribeSpeechGate).
		Msg("Transcription enabled")
	return pool, nil
}
