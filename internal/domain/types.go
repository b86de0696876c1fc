package domain

import "strings"

// Status is the connection status of a journaling session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Entry is one immutable line of the session transcript.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// CommitStrategy decides when user speech becomes a finished turn.
type CommitStrategy string

const (
	CommitVAD    CommitStrategy = "vad"
	CommitManual CommitStrategy = "manual"
)

// ParseCommitStrategy maps user input to a strategy, defaulting to VAD.
func ParseCommitStrategy(s string) CommitStrategy {
	if strings.EqualFold(strings.TrimSpace(s), string(CommitManual)) {
		return CommitManual
	}
	return CommitVAD
}

// TranscriptKind classifies events coming from the realtime transcription channel.
type TranscriptKind string

const (
	TranscriptPartial   TranscriptKind = "partial"
	TranscriptCommitted TranscriptKind = "committed"
	// TranscriptError covers error, auth_error and quota_exceeded messages.
	TranscriptError TranscriptKind = "error"
)

// TranscriptEvent is a parsed inbound message from the transcription channel.
type TranscriptEvent struct {
	Kind TranscriptKind
	Text string
	// Code is the provider message type for error events (e.g. "auth_error").
	Code    string
	Message string
}

// AudioChunk is one outbound block of captured audio.
type AudioChunk struct {
	AudioBase64 string
	SampleRate  int
	Commit      bool
}

// VADParams are passed through to the server-side voice activity detector.
type VADParams struct {
	SilenceThresholdSecs float64
	Threshold            float64
	MinSpeechDurationMS  int
}

// JournalEntry is a persisted record of one finished session.
type JournalEntry struct {
	ID             string  `json:"id"`
	ISODate        string  `json:"isoDate"`
	PreviewText    string  `json:"previewText"`
	FullTranscript []Entry `json:"fullTranscript"`
}

// Chat roles used on the wire between client and proxy.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// ChatMessage is one transcript line in the proxy request format.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatMessagesFromTranscript maps transcript entries to proxy messages.
func ChatMessagesFromTranscript(transcript []Entry) []ChatMessage {
	messages := make([]ChatMessage, 0, len(transcript))
	for _, entry := range transcript {
		role := RoleUser
		if entry.Speaker == SpeakerAssistant {
			role = RoleAI
		}
		messages = append(messages, ChatMessage{Role: role, Text: entry.Text})
	}
	return messages
}
