package ports

import (
	"context"

	"github.com/user/voice-journal/internal/domain"
)

// CaptureStream is a live microphone stream delivering mono float samples.
type CaptureStream interface {
	// Samples is closed when capture stops; Err then reports a device
	// failure, or nil after Close.
	Samples() <-chan []float32
	SampleRate() int
	Err() error
	Close() error
}

// Microphone opens capture streams. Open may block on device permission.
type Microphone interface {
	Open(ctx context.Context) (CaptureStream, error)
}

// ChannelConfig describes one realtime transcription connection.
type ChannelConfig struct {
	Token      string
	Strategy   domain.CommitStrategy
	SampleRate int
	VAD        domain.VADParams
}

// TranscriptionChannel is an open realtime speech-to-text connection.
type TranscriptionChannel interface {
	Send(chunk domain.AudioChunk) error
	// Events is closed when the connection ends; Err then reports why.
	Events() <-chan domain.TranscriptEvent
	Err() error
	Close() error
}

// TranscriptionProvider dials realtime transcription channels.
type TranscriptionProvider interface {
	Open(ctx context.Context, cfg ChannelConfig) (TranscriptionChannel, error)
}

// TokenSource issues single-use credentials for the realtime channel.
type TokenSource interface {
	ScribeToken(ctx context.Context) (string, error)
}

// Dialogue asks the remote model for the next assistant utterance.
type Dialogue interface {
	NextQuestion(ctx context.Context, systemPrompt string, transcript []domain.Entry) (string, error)
}

// Synthesizer turns text into playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// AudioOutput is an allocated playback context.
type AudioOutput interface {
	// Play blocks until the clip finished or ctx is cancelled, in which case
	// playback stops immediately.
	Play(ctx context.Context, clip []byte) error
	Close() error
}

// Speaker allocates playback contexts.
type Speaker interface {
	Open() (AudioOutput, error)
}

// Journal persists finished session transcripts.
type Journal interface {
	SaveTranscript(transcript []domain.Entry) (domain.JournalEntry, error)
}

// Observer receives session state for display.
type Observer interface {
	StatusChanged(status domain.Status, message string)
	TranscriptChanged(transcript []domain.Entry)
	InterimChanged(text string)
}
