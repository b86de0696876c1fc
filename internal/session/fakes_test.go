package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/ports"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeClock records timers; tests fire them by hand.
type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) stoppable {
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) last(t *testing.T) *fakeTimer {
	t.Helper()
	require.NotEmpty(t, c.timers)
	return c.timers[len(c.timers)-1]
}

func (c *fakeClock) fire(t *fakeTimer) {
	if !t.stopped {
		t.f()
	}
}

type fakeStream struct {
	samples    chan []float32
	closeCount atomic.Int32

	mu  sync.Mutex
	err error
}

func (s *fakeStream) Samples() <-chan []float32 { return s.samples }
func (s *fakeStream) SampleRate() int           { return 16000 }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// fail ends capture as if the device went away.
func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.samples)
}

func (s *fakeStream) Close() error {
	s.closeCount.Add(1)
	return nil
}

type fakeMic struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (m *fakeMic) Open(context.Context) (ports.CaptureStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &fakeStream{samples: make(chan []float32, 8)}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMic) last() *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[len(m.streams)-1]
}

type fakeChannel struct {
	cfg ports.ChannelConfig

	mu         sync.Mutex
	events     chan domain.TranscriptEvent
	sent       []domain.AudioChunk
	closed     bool
	err        error
	closeCount atomic.Int32
}

func (c *fakeChannel) Send(chunk domain.AudioChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	c.sent = append(c.sent, chunk)
	return nil
}

func (c *fakeChannel) Events() <-chan domain.TranscriptEvent { return c.events }

func (c *fakeChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeChannel) Close() error {
	c.closeCount.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *fakeChannel) emit(ev domain.TranscriptEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.events <- ev
	}
}

func (c *fakeChannel) committed(text string) {
	c.emit(domain.TranscriptEvent{Kind: domain.TranscriptCommitted, Text: text})
}

func (c *fakeChannel) partial(text string) {
	c.emit(domain.TranscriptEvent{Kind: domain.TranscriptPartial, Text: text})
}

func (c *fakeChannel) fail(code, message string) {
	c.emit(domain.TranscriptEvent{Kind: domain.TranscriptError, Code: code, Message: message})
}

// serverClose ends the event stream as if the remote side hung up.
func (c *fakeChannel) serverClose(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.err = err
		close(c.events)
	}
}

func (c *fakeChannel) sentChunks() []domain.AudioChunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.AudioChunk(nil), c.sent...)
}

type fakeProvider struct {
	mu       sync.Mutex
	err      error
	channels []*fakeChannel
}

func (p *fakeProvider) Open(_ context.Context, cfg ports.ChannelConfig) (ports.TranscriptionChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	ch := &fakeChannel{cfg: cfg, events: make(chan domain.TranscriptEvent, 16)}
	p.channels = append(p.channels, ch)
	return ch, nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}

func (p *fakeProvider) last() *fakeChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels[len(p.channels)-1]
}

type fakeTokens struct{}

func (fakeTokens) ScribeToken(context.Context) (string, error) { return "single-use", nil }

type dialogueCall struct {
	prompt     string
	transcript []domain.Entry
}

type fakeDialogue struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []dialogueCall
}

func (d *fakeDialogue) NextQuestion(_ context.Context, prompt string, transcript []domain.Entry) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dialogueCall{prompt: prompt, transcript: transcript})
	return d.reply, d.err
}

func (d *fakeDialogue) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeSynth struct {
	mu    sync.Mutex
	err   error
	texts []string
	voice string
}

func (s *fakeSynth) Synthesize(_ context.Context, text, voiceID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.voice = voiceID
	if s.err != nil {
		return nil, s.err
	}
	return []byte("clip:" + text), nil
}

func (s *fakeSynth) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type fakeOutput struct {
	mu         sync.Mutex
	err        error
	played     [][]byte
	closeCount atomic.Int32
}

func (o *fakeOutput) Play(_ context.Context, clip []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.played = append(o.played, clip)
	return o.err
}

func (o *fakeOutput) Close() error {
	o.closeCount.Add(1)
	return nil
}

type fakeSpeaker struct {
	mu      sync.Mutex
	outputs []*fakeOutput
}

func (s *fakeSpeaker) Open() (ports.AudioOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &fakeOutput{}
	s.outputs = append(s.outputs, out)
	return out, nil
}

type fakeJournal struct {
	mu    sync.Mutex
	saved [][]domain.Entry
}

func (j *fakeJournal) SaveTranscript(transcript []domain.Entry) (domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.saved = append(j.saved, transcript)
	return domain.JournalEntry{ID: "entry", FullTranscript: transcript}, nil
}

func (j *fakeJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.saved)
}

type fakeObserver struct {
	mu       sync.Mutex
	statuses []domain.Status
	interims []string
}

func (o *fakeObserver) StatusChanged(status domain.Status, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *fakeObserver) TranscriptChanged([]domain.Entry) {}

func (o *fakeObserver) InterimChanged(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.interims = append(o.interims, text)
}

// harness drives an orchestrator without its loop goroutine, handling one
// event at a time.
type harness struct {
	o        *Orchestrator
	clock    *fakeClock
	mic      *fakeMic
	provider *fakeProvider
	dialogue *fakeDialogue
	synth    *fakeSynth
	speaker  *fakeSpeaker
	journal  *fakeJournal
	observer *fakeObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    &fakeClock{},
		mic:      &fakeMic{},
		provider: &fakeProvider{},
		dialogue: &fakeDialogue{reply: "What made it hard?"},
		synth:    &fakeSynth{},
		speaker:  &fakeSpeaker{},
		journal:  &fakeJournal{},
		observer: &fakeObserver{},
	}
	h.o = newOrchestrator(Deps{
		Microphone:  h.mic,
		Transcriber: h.provider,
		Tokens:      fakeTokens{},
		Dialogue:    h.dialogue,
		Synthesizer: h.synth,
		Speaker:     h.speaker,
		Journal:     h.journal,
		Observer:    h.observer,
	}, Config{
		CommitTimeout: 1500 * time.Millisecond,
		ListenDelay:   700 * time.Millisecond,
	})
	h.o.afterFunc = h.clock.afterFunc

	t.Cleanup(func() {
		h.o.disconnect()
		close(h.o.done)
	})
	return h
}

func (h *harness) connect(t *testing.T, strategy domain.CommitStrategy) {
	t.Helper()
	out, err := h.speaker.Open()
	require.NoError(t, err)
	require.NoError(t, h.o.connect(Options{
		Strategy:     strategy,
		VoiceID:      "voice-1",
		SystemPrompt: "be kind",
	}, out))
}

func (h *harness) step(t *testing.T) event {
	t.Helper()
	select {
	case e := <-h.o.events:
		h.o.handle(e)
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a session event")
		return nil
	}
}

// stepUntil handles events until one of type T has been handled.
func stepUntil[T event](t *testing.T, h *harness) T {
	t.Helper()
	for {
		if ev, ok := h.step(t).(T); ok {
			return ev
		}
	}
}

// speakAndListen plays the pending assistant clip, fires the cooldown and
// waits for the next channel to be wired.
func (h *harness) speakAndListen(t *testing.T) *fakeChannel {
	t.Helper()
	stepUntil[synthesisResponse](t, h)
	require.True(t, h.o.s.aiSpeaking)
	stepUntil[playbackEnded](t, h)

	timer := h.clock.last(t)
	require.Equal(t, 700*time.Millisecond, timer.d)
	h.clock.fire(timer)
	stepUntil[listenTimer](t, h)
	stepUntil[micReady](t, h)
	require.NotNil(t, h.o.s.listen)
	return h.provider.last()
}

// replyAndListen completes an assistant turn started by a finalize.
func (h *harness) replyAndListen(t *testing.T) *fakeChannel {
	t.Helper()
	stepUntil[dialogueResponse](t, h)
	return h.speakAndListen(t)
}
