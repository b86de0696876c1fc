package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// HTTP
	HTTPAddress string
	BackendURL  string

	// Gemini settings
	GenAIAPIKey          string
	GenAIModel           string
	GenAIMaxOutputTokens int

	// ElevenLabs settings
	ElevenLabsAPIKey         string
	ElevenLabsAPIBase        string
	ElevenLabsDefaultVoiceID string
	ElevenLabsTTSModel       string

	// Realtime scribe settings
	ScribeModelID        string
	ScribeLanguage       string
	ScribeVADSilenceSecs float64
	ScribeVADThreshold   float64
	ScribeMinSpeechMS    int

	// Batch transcription
	TranscribeBackend    string // "elevenlabs", "deepgram" or "vosk"
	DeepgramAPIKey       string
	DeepgramTier         string
	VoskModelPath        string
	TranscribeSpeechGate bool
	TranscribeWorkers    int

	// Audio devices
	MicSampleRate      int
	STTSampleRate      int
	MicFramesPerBuffer int
	SpeakerSampleRate  int

	// Session timing
	CommitTimeout time.Duration
	ListenDelay   time.Duration

	// Storage
	JournalDir string

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables only")
	}

	cfg := &Config{
		// HTTP
		HTTPAddress: getEnvOrDefault("HTTP_ADDRESS", ":8787"),
		BackendURL:  getEnvOrDefault("BACKEND_URL", "http://localhost:8787"),

		// Gemini
		GenAIAPIKey:          os.Getenv("GENAI_API_KEY"),
		GenAIModel:           getEnvOrDefault("GENAI_MODEL", "gemini-2.5-flash"),
		GenAIMaxOutputTokens: getIntEnvOrDefault("GENAI_MAX_OUTPUT_TOKENS", 256),

		// ElevenLabs
		ElevenLabsAPIKey:         os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsAPIBase:        getEnvOrDefault("ELEVENLABS_API_BASE", "https://api.elevenlabs.io"),
		ElevenLabsDefaultVoiceID: getEnvOrDefault("ELEVENLABS_DEFAULT_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsTTSModel:       getEnvOrDefault("ELEVENLABS_TTS_MODEL", "eleven_multilingual_v2"),

		// Scribe
		ScribeModelID:        getEnvOrDefault("SCRIBE_MODEL_ID", "scribe_v2_realtime"),
		ScribeLanguage:       getEnvOrDefault("SCRIBE_LANGUAGE", "en"),
		ScribeVADSilenceSecs: getFloatEnvOrDefault("SCRIBE_VAD_SILENCE_SECS", 1.2),
		ScribeVADThreshold:   getFloatEnvOrDefault("SCRIBE_VAD_THRESHOLD", 0.4),
		ScribeMinSpeechMS:    getIntEnvOrDefault("SCRIBE_MIN_SPEECH_MS", 100),

		// Batch transcription
		TranscribeBackend:    getEnvOrDefault("TRANSCRIBE_BACKEND", "elevenlabs"),
		DeepgramAPIKey:       os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramTier:         getEnvOrDefault("DEEPGRAM_TIER", "nova-2"),
		VoskModelPath:        getEnvOrDefault("VOSK_MODEL_PATH", "./models/vosk/en"),
		TranscribeSpeechGate: getBoolEnvOrDefault("TRANSCRIBE_SPEECH_GATE", false),
		TranscribeWorkers:    getIntEnvOrDefault("TRANSCRIBE_WORKERS", 2),

		// Audio
		MicSampleRate:      getIntEnvOrDefault("MIC_SAMPLE_RATE", 48000),
		STTSampleRate:      getIntEnvOrDefault("STT_SAMPLE_RATE", 16000),
		MicFramesPerBuffer: getIntEnvOrDefault("MIC_FRAMES_PER_BUFFER", 4096),
		SpeakerSampleRate:  getIntEnvOrDefault("SPEAKER_SAMPLE_RATE", 44100),

		// Session
		CommitTimeout: time.Duration(getIntEnvOrDefault("SESSION_COMMIT_TIMEOUT_MS", 1500)) * time.Millisecond,
		ListenDelay:   time.Duration(getIntEnvOrDefault("SESSION_LISTEN_DELAY_MS", 700)) * time.Millisecond,

		// Storage
		JournalDir: getEnvOrDefault("JOURNAL_DIR", "./data"),

		// Logging
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg, cfg.validate()
}

// validate only checks shape. Missing upstream credentials are reported per
// request by the server so the other endpoints keep working.
func (c *Config) validate() error {
	switch c.TranscribeBackend {
	case "elevenlabs", "deepgram", "vosk":
	default:
		return fmt.Errorf("TRANSCRIBE_BACKEND must be 'elevenlabs', 'deepgram' or 'vosk'")
	}

	if c.MicSampleRate <= 0 || c.STTSampleRate <= 0 || c.SpeakerSampleRate <= 0 {
		return fmt.Errorf("sample rates must be positive")
	}

	if c.TranscribeWorkers <= 0 {
		return fmt.Errorf("TRANSCRIBE_WORKERS must be positive")
	}

	if c.MicFramesPerBuffer <= 0 {
		return fmt.Errorf("MIC_FRAMES_PER_BUFFER must be positive")
	}

	if c.CommitTimeout <= 0 {
		return fmt.Errorf("SESSION_COMMIT_TIMEOUT_MS must be positive")
	}

	if c.ListenDelay < 0 {
		return fmt.Errorf("SESSION_LISTEN_DELAY_MS must not be negative")
	}

	if c.GenAIMaxOutputTokens <= 0 {
		return fmt.Errorf("GENAI_MAX_OUTPUT_TOKENS must be positive")
	}

	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
