package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/ports"
)

// Config controls the ElevenLabs realtime scribe connection.
type Config struct {
	// APIKey is only used when no single-use token is supplied.
	APIKey     string
	APIBaseURL string
	ModelID    string
	Language   string
}

// Provider implements ports.TranscriptionProvider for ElevenLabs Scribe.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.elevenlabs.io"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "scribe_v2_realtime"
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (p *Provider) Open(ctx context.Context, cfg ports.ChannelConfig) (ports.TranscriptionChannel, error) {
	if strings.TrimSpace(cfg.Token) == "" && strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("realtime scribe token is required")
	}

	wsURL, err := buildRealtimeURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if cfg.Token == "" {
		headers.Set("xi-api-key", p.cfg.APIKey)
	}

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to scribe websocket: %w", err)
	}

	ch := &channel{
		conn:     conn,
		events:   make(chan domain.TranscriptEvent, 64),
		audio:    make(chan []byte, 32),
		closing:  make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	ch.wg.Add(2)
	go ch.readLoop()
	go ch.writeLoop()
	go func() {
		ch.wg.Wait()
		close(ch.events)
		close(ch.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Close()
		case <-ch.done:
		}
	}()

	log.Debug().
		Str("strategy", string(cfg.Strategy)).
		Int("sample_rate", cfg.SampleRate).
		Msg("Scribe channel opened")

	return ch, nil
}

type channel struct {
	conn *websocket.Conn

	events   chan domain.TranscriptEvent
	audio    chan []byte
	closing  chan struct{}
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce  sync.Once
	sendMu     sync.RWMutex
	sendClosed bool
}

type outboundChunk struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	SampleRate  int    `json:"sample_rate"`
	Commit      bool   `json:"commit"`
}

type inboundMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	Error       string `json:"error"`
}

func (c *channel) Send(chunk domain.AudioChunk) error {
	payload, err := json.Marshal(outboundChunk{
		MessageType: "input_audio_chunk",
		AudioBase64: chunk.AudioBase64,
		SampleRate:  chunk.SampleRate,
		Commit:      chunk.Commit,
	})
	if err != nil {
		return fmt.Errorf("failed to encode audio chunk: %w", err)
	}

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return errors.New("transcription channel is closed")
	}

	select {
	case <-c.readDone:
		if err := c.Err(); err != nil {
			return err
		}
		return errors.New("transcription channel closed by server")
	default:
	}

	select {
	case c.audio <- payload:
		return nil
	case <-c.closing:
		return errors.New("transcription channel is closed")
	case <-c.readDone:
		if err := c.Err(); err != nil {
			return err
		}
		return errors.New("transcription channel closed by server")
	}
}

func (c *channel) Events() <-chan domain.TranscriptEvent {
	return c.events
}

func (c *channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close shuts the socket and waits for both loops to exit.
func (c *channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		_ = c.conn.Close()

		c.sendMu.Lock()
		c.sendClosed = true
		close(c.audio)
		c.sendMu.Unlock()
	})
	<-c.done
	return nil
}

func (c *channel) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	select {
	case <-c.closing:
		// reads fail once we closed the socket ourselves
		return
	default:
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = fmt.Errorf("scribe connection failed: %w", err)
	}
}

func (c *channel) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case payload, ok := <-c.audio:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.setErr(err)
				return
			}
		case <-c.readDone:
			return
		}
	}
}

func (c *channel) readLoop() {
	defer c.wg.Done()
	defer close(c.readDone)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}

		event, ok := parseMessage(payload)
		if !ok {
			continue
		}
		c.emit(event)
	}
}

func (c *channel) emit(event domain.TranscriptEvent) {
	select {
	case c.events <- event:
	case <-c.closing:
	}
}

// parseMessage maps one inbound frame to an event. Unknown types and
// unparseable frames report false.
func parseMessage(payload []byte) (domain.TranscriptEvent, bool) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Debug().Err(err).Msg("Dropping unparseable scribe message")
		return domain.TranscriptEvent{}, false
	}

	switch msg.MessageType {
	case "partial_transcript":
		return domain.TranscriptEvent{Kind: domain.TranscriptPartial, Text: msg.Text}, true
	case "committed_transcript", "committed_transcript_with_timestamps":
		return domain.TranscriptEvent{Kind: domain.TranscriptCommitted, Text: msg.Text}, true
	case "error", "auth_error", "quota_exceeded":
		message := strings.TrimSpace(msg.Error)
		if message == "" {
			message = msg.MessageType
		}
		return domain.TranscriptEvent{Kind: domain.TranscriptError, Code: msg.MessageType, Message: message}, true
	case "session_started":
		log.Debug().Msg("Scribe session started")
		return domain.TranscriptEvent{}, false
	default:
		return domain.TranscriptEvent{}, false
	}
}

func buildRealtimeURL(providerCfg Config, channelCfg ports.ChannelConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	realtimeURL, err := url.Parse(base + "/v1/speech-to-text/realtime")
	if err != nil {
		return "", fmt.Errorf("invalid ElevenLabs API base URL: %w", err)
	}

	if channelCfg.SampleRate <= 0 {
		channelCfg.SampleRate = 16000
	}
	strategy := channelCfg.Strategy
	if strategy == "" {
		strategy = domain.CommitVAD
	}

	query := realtimeURL.Query()
	if channelCfg.Token != "" {
		query.Set("token", channelCfg.Token)
	}
	query.Set("model_id", providerCfg.ModelID)
	query.Set("commit_strategy", string(strategy))
	query.Set("audio_format", fmt.Sprintf("pcm_%d", channelCfg.SampleRate))
	if providerCfg.Language != "" {
		query.Set("language_code", providerCfg.Language)
	}
	if strategy == domain.CommitVAD {
		vad := channelCfg.VAD
		if vad.SilenceThresholdSecs > 0 {
			query.Set("vad_silence_threshold_secs", strconv.FormatFloat(vad.SilenceThresholdSecs, 'f', -1, 64))
		}
		if vad.Threshold > 0 {
			query.Set("vad_threshold", strconv.FormatFloat(vad.Threshold, 'f', -1, 64))
		}
		if vad.MinSpeechDurationMS > 0 {
			query.Set("min_speech_duration_ms", strconv.Itoa(vad.MinSpeechDurationMS))
		}
	}
	realtimeURL.RawQuery = query.Encode()
	return realtimeURL.String(), nil
}
