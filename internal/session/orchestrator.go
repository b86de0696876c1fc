package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/ports"
)

const (
	DefaultGreeting = "Hi, I'm here to listen. How are you feeling today?"

	DefaultSystemPrompt = "You are a warm, thoughtful journaling companion. " +
		"Ask one short, open-ended follow-up question at a time that helps the user reflect on what they just said. " +
		"Do not give advice unless asked. Keep every reply under two sentences."

	defaultCommitTimeout = 1500 * time.Millisecond
	defaultListenDelay   = 700 * time.Millisecond
	defaultSTTSampleRate = 16000
)

var (
	ErrAlreadyConnected = errors.New("session is already connected")
	ErrClosed           = errors.New("orchestrator is closed")
)

// Deps are the collaborators of a session. Journal and Observer are optional.
type Deps struct {
	Microphone  ports.Microphone
	Transcriber ports.TranscriptionProvider
	Tokens      ports.TokenSource
	Dialogue    ports.Dialogue
	Synthesizer ports.Synthesizer
	Speaker     ports.Speaker
	Journal     ports.Journal
	Observer    ports.Observer
}

type Config struct {
	STTSampleRate int
	VAD           domain.VADParams
	CommitTimeout time.Duration
	ListenDelay   time.Duration
	Greeting      string
}

// Options are fixed for the lifetime of one connection.
type Options struct {
	Strategy     domain.CommitStrategy
	VoiceID      string
	SystemPrompt string
}

// Snapshot is a copy of the session state for display and tests.
type Snapshot struct {
	SessionID      string
	Status         domain.Status
	LastError      string
	Transcript     []domain.Entry
	Interim        string
	Strategy       domain.CommitStrategy
	Listening      bool
	ProcessingTurn bool
	AISpeaking     bool
}

type stoppable interface {
	Stop() bool
}

// Orchestrator runs the voice turn cycle. All session state is owned by the
// loop goroutine; public methods only post events to it.
type Orchestrator struct {
	deps Deps
	cfg  Config

	events chan event
	quit   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
	afterFunc func(time.Duration, func()) stoppable

	s state
}

// state is the live session. Handles are nil when not held.
type state struct {
	id     string
	gen    uint64
	status domain.Status
	opts   Options

	lastError  string
	transcript []domain.Entry
	interim    string

	processingTurn bool
	listening      bool
	aiSpeaking     bool

	ctx    context.Context
	cancel context.CancelFunc
	output ports.AudioOutput

	listen    *listenSet
	listenGen uint64
	retried   bool

	buffer        []string
	commitPending bool
	commitSeq     uint64
	commitTimer   stoppable
	listenTimer   stoppable
}

func New(deps Deps, cfg Config) *Orchestrator {
	o := newOrchestrator(deps, cfg)
	go o.run()
	return o
}

func newOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.STTSampleRate <= 0 {
		cfg.STTSampleRate = defaultSTTSampleRate
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = defaultCommitTimeout
	}
	if cfg.ListenDelay < 0 {
		cfg.ListenDelay = defaultListenDelay
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		events: make(chan event, 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		afterFunc: func(d time.Duration, f func()) stoppable {
			return time.AfterFunc(d, f)
		},
		s: state{status: domain.StatusDisconnected},
	}
}

// Connect allocates the playback output, starts a session and speaks the
// greeting. It returns once the session is connected.
func (o *Orchestrator) Connect(ctx context.Context, opts Options) error {
	if opts.Strategy == "" {
		opts.Strategy = domain.CommitVAD
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}

	output, err := o.deps.Speaker.Open()
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	reply := make(chan error, 1)
	if !o.post(connectCmd{opts: opts, output: output, reply: reply}) {
		_ = output.Close()
		return ErrClosed
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrClosed
	}
}

// Disconnect tears the session down and saves the transcript. Safe to call
// in any state, any number of times.
func (o *Orchestrator) Disconnect() {
	reply := make(chan struct{}, 1)
	if !o.post(disconnectCmd{reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-o.done:
	}
}

// CommitManual asks to finish the current user turn in manual mode.
func (o *Orchestrator) CommitManual() {
	o.post(commitRequested{})
}

func (o *Orchestrator) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !o.post(snapshotCmd{reply: reply}) {
		return Snapshot{Status: domain.StatusDisconnected}
	}
	select {
	case snap := <-reply:
		return snap
	case <-o.done:
		return Snapshot{Status: domain.StatusDisconnected}
	}
}

// Close disconnects and stops the loop.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.Disconnect()
		close(o.quit)
		<-o.done
	})
}

func (o *Orchestrator) post(e event) bool {
	select {
	case o.events <- e:
		return true
	case <-o.done:
		return false
	}
}

func (o *Orchestrator) run() {
	defer close(o.done)

	for {
		select {
		case e := <-o.events:
			o.handle(e)
		case <-o.quit:
			return
		}
	}
}

func (o *Orchestrator) handle(e event) {
	switch ev := e.(type) {
	case connectCmd:
		ev.reply <- o.connect(ev.opts, ev.output)
	case disconnectCmd:
		o.disconnect()
		ev.reply <- struct{}{}
	case snapshotCmd:
		ev.reply <- o.snapshot()
	case commitRequested:
		o.requestCommit()
	case commitTimeout:
		o.onCommitTimeout(ev)
	case listenTimer:
		if ev.gen == o.s.gen {
			o.s.listenTimer = nil
			o.startListening()
		}
	case micReady:
		o.onMicReady(ev)
	case captureEnded:
		if o.current(ev.gen, ev.listenGen) {
			o.onCaptureEnded(ev.err)
		}
	case partialTranscript:
		if o.current(ev.gen, ev.listenGen) {
			o.onPartial(ev.text)
		}
	case committedTranscript:
		if o.current(ev.gen, ev.listenGen) {
			o.onCommitted(ev.text)
		}
	case channelError:
		if o.current(ev.gen, ev.listenGen) {
			o.onChannelError(ev)
		}
	case channelClosed:
		if o.current(ev.gen, ev.listenGen) {
			o.onChannelClosed(ev.err)
		}
	case dialogueResponse:
		if ev.gen == o.s.gen {
			o.onDialogue(ev)
		}
	case synthesisResponse:
		if ev.gen == o.s.gen {
			o.onSynthesis(ev)
		}
	case playbackEnded:
		if ev.gen == o.s.gen {
			o.onPlaybackEnded(ev)
		}
	default:
		log.Warn().Str("event", fmt.Sprintf("%T", e)).Msg("Unknown session event")
	}
}

// current reports whether a channel event belongs to the live listening period.
func (o *Orchestrator) current(gen, listenGen uint64) bool {
	return gen == o.s.gen && listenGen == o.s.listenGen && o.s.listen != nil
}

func (o *Orchestrator) connect(opts Options, output ports.AudioOutput) error {
	if o.s.status == domain.StatusConnecting || o.s.status == domain.StatusConnected {
		_ = output.Close()
		return ErrAlreadyConnected
	}

	// an errored session still holds its handles and transcript
	if o.s.status == domain.StatusError {
		o.disconnect()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.s = state{
		id:        uuid.NewString(),
		gen:       o.s.gen + 1,
		listenGen: o.s.listenGen + 1,
		commitSeq: o.s.commitSeq,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		output:    output,
	}
	o.setStatus(domain.StatusConnecting, "")
	o.deps.Observer.TranscriptChanged(nil)

	log.Info().
		Str("session_id", o.s.id).
		Str("strategy", string(opts.Strategy)).
		Str("voice_id", opts.VoiceID).
		Msg("Session connected")

	o.setStatus(domain.StatusConnected, "")

	// the greeting holds the turn like any assistant reply
	o.s.processingTurn = true
	o.synthesize(o.cfg.Greeting)
	return nil
}

func (o *Orchestrator) disconnect() {
	hadSession := o.s.cancel != nil
	o.teardown()

	if len(o.s.transcript) > 0 && o.deps.Journal != nil {
		entry, err := o.deps.Journal.SaveTranscript(o.s.transcript)
		if err != nil {
			log.Error().Err(err).Str("session_id", o.s.id).Msg("Failed to save journal entry")
		} else {
			log.Info().
				Str("session_id", o.s.id).
				Str("entry_id", entry.ID).
				Msg("Session saved to journal")
		}
	}
	o.s.transcript = nil

	if hadSession || o.s.status != domain.StatusDisconnected {
		o.s.gen++
		o.s.lastError = ""
		o.setStatus(domain.StatusDisconnected, "")
		log.Info().Str("session_id", o.s.id).Msg("Session disconnected")
	}
}

// teardown releases every handle and resets the turn flags. The transcript
// is kept.
func (o *Orchestrator) teardown() {
	o.stopTimer(&o.s.listenTimer)
	o.stopListening()

	if o.s.cancel != nil {
		o.s.cancel()
		o.s.cancel = nil
	}
	if o.s.output != nil {
		if err := o.s.output.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close audio output")
		}
		o.s.output = nil
	}

	o.s.processingTurn = false
	o.s.aiSpeaking = false
	o.s.retried = false
}

// fail surfaces a failure. Listening is torn down and the turn released,
// but nothing resumes until the user reconnects.
func (o *Orchestrator) fail(message string) {
	o.stopTimer(&o.s.listenTimer)
	o.stopListening()
	o.s.processingTurn = false
	o.s.aiSpeaking = false
	o.s.lastError = message
	// in-flight results belong to the failed turn
	o.s.gen++

	log.Error().Str("session_id", o.s.id).Str("error", message).Msg("Session failed")
	o.setStatus(domain.StatusError, message)
}

func (o *Orchestrator) setStatus(status domain.Status, message string) {
	o.s.status = status
	o.deps.Observer.StatusChanged(status, message)
}

func (o *Orchestrator) setInterim(text string) {
	if o.s.interim == text {
		return
	}
	o.s.interim = text
	o.deps.Observer.InterimChanged(text)
}

func (o *Orchestrator) appendEntry(speaker domain.Speaker, text string) {
	o.s.transcript = append(o.s.transcript, domain.Entry{Speaker: speaker, Text: text})
	o.deps.Observer.TranscriptChanged(o.transcriptCopy())
}

func (o *Orchestrator) transcriptCopy() []domain.Entry {
	return append([]domain.Entry(nil), o.s.transcript...)
}

func (o *Orchestrator) snapshot() Snapshot {
	return Snapshot{
		SessionID:      o.s.id,
		Status:         o.s.status,
		LastError:      o.s.lastError,
		Transcript:     o.transcriptCopy(),
		Interim:        o.s.interim,
		Strategy:       o.s.opts.Strategy,
		Listening:      o.s.listening,
		ProcessingTurn: o.s.processingTurn,
		AISpeaking:     o.s.aiSpeaking,
	}
}

func (o *Orchestrator) stopTimer(t *stoppable) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

type nopObserver struct{}

func (nopObserver) StatusChanged(domain.Status, string) {}
func (nopObserver) TranscriptChanged([]domain.Entry)    {}
func (nopObserver) InterimChanged(string)               {}
