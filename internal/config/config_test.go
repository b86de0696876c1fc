package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRANSCRIBE_BACKEND", "")
	t.Setenv("SESSION_COMMIT_TIMEOUT_MS", "")
	t.Setenv("SESSION_LISTEN_DELAY_MS", "")
	t.Setenv("ELEVENLABS_DEFAULT_VOICE_ID", "")
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("STT_SAMPLE_RATE", "")
	t.Setenv("SCRIBE_VAD_SILENCE_SECS", "")
	t.Setenv("TRANSCRIBE_WORKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8787", cfg.HTTPAddress)
	assert.Equal(t, "elevenlabs", cfg.TranscribeBackend)
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", cfg.ElevenLabsDefaultVoiceID)
	assert.Equal(t, 1500*time.Millisecond, cfg.CommitTimeout)
	assert.Equal(t, 700*time.Millisecond, cfg.ListenDelay)
	assert.Equal(t, 16000, cfg.STTSampleRate)
	assert.InDelta(t, 1.2, cfg.ScribeVADSilenceSecs, 1e-9)
	assert.Equal(t, 2, cfg.TranscribeWorkers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TRANSCRIBE_BACKEND", "vosk")
	t.Setenv("SESSION_LISTEN_DELAY_MS", "250")
	t.Setenv("SCRIBE_VAD_THRESHOLD", "0.7")
	t.Setenv("TRANSCRIBE_SPEECH_GATE", "true")
	t.Setenv("MIC_SAMPLE_RATE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vosk", cfg.TranscribeBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.ListenDelay)
	assert.InDelta(t, 0.7, cfg.ScribeVADThreshold, 1e-9)
	assert.True(t, cfg.TranscribeSpeechGate)
	assert.Equal(t, 48000, cfg.MicSampleRate)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "TRANSCRIBE_BACKEND", "whisper"},
		{"zero sample rate", "STT_SAMPLE_RATE", "0"},
		{"zero commit timeout", "SESSION_COMMIT_TIMEOUT_MS", "0"},
		{"negative listen delay", "SESSION_LISTEN_DELAY_MS", "-1"},
		{"zero output tokens", "GENAI_MAX_OUTPUT_TOKENS", "0"},
		{"zero workers", "TRANSCRIBE_WORKERS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
