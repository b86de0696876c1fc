package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/audio"
	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/ports"
)

const chunkMS = 100

// listenSet is the audio resource set of one listening period.
type listenSet struct {
	stream  ports.CaptureStream
	channel ports.TranscriptionChannel
	// commit hands the forced-flush chunk to the pump so it follows every
	// sample captured before it.
	commit   chan domain.AudioChunk
	cancel   context.CancelFunc
	pumpDone chan struct{}
}

// close releases the stream and channel and waits for the pump to exit.
func (l *listenSet) close() {
	l.cancel()
	if err := l.stream.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close capture stream")
	}
	if err := l.channel.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close transcription channel")
	}
	<-l.pumpDone
}

// startListening opens capture and the transcription channel in the
// background. The result arrives as micReady.
func (o *Orchestrator) startListening() {
	if o.s.status != domain.StatusConnected || o.s.listening || o.s.processingTurn || o.s.aiSpeaking {
		return
	}

	o.s.listening = true
	o.s.listenGen++
	gen, listenGen, ctx := o.s.gen, o.s.listenGen, o.s.ctx
	channelCfg := ports.ChannelConfig{
		Strategy:   o.s.opts.Strategy,
		SampleRate: o.cfg.STTSampleRate,
		VAD:        o.cfg.VAD,
	}

	log.Debug().Str("session_id", o.s.id).Uint64("listen_gen", listenGen).Msg("Starting to listen")

	go func() {
		ready := micReady{gen: gen, listenGen: listenGen}

		token, err := o.deps.Tokens.ScribeToken(ctx)
		if err != nil {
			ready.err = fmt.Errorf("failed to get transcription token: %w", err)
			o.post(ready)
			return
		}
		channelCfg.Token = token

		stream, err := o.deps.Microphone.Open(ctx)
		if err != nil {
			ready.err = fmt.Errorf("failed to open microphone: %w", err)
			o.post(ready)
			return
		}

		channel, err := o.deps.Transcriber.Open(ctx, channelCfg)
		if err != nil {
			_ = stream.Close()
			ready.err = fmt.Errorf("failed to connect transcription: %w", err)
			o.post(ready)
			return
		}

		ready.stream = stream
		ready.channel = channel
		if !o.post(ready) {
			_ = stream.Close()
			_ = channel.Close()
		}
	}()
}

func (o *Orchestrator) onMicReady(ev micReady) {
	if ev.gen != o.s.gen || ev.listenGen != o.s.listenGen || !o.s.listening || o.s.listen != nil {
		// listening was torn down while opening
		if ev.err == nil {
			_ = ev.stream.Close()
			_ = ev.channel.Close()
		}
		return
	}

	if ev.err != nil {
		o.s.listening = false
		o.fail(ev.err.Error())
		return
	}

	ctx, cancel := context.WithCancel(o.s.ctx)
	set := &listenSet{
		stream:   ev.stream,
		channel:  ev.channel,
		commit:   make(chan domain.AudioChunk, 1),
		cancel:   cancel,
		pumpDone: make(chan struct{}),
	}
	o.s.listen = set

	go o.pump(ctx, ev.gen, ev.listenGen, set)
	go o.forward(ev.gen, ev.listenGen, ev.channel)

	log.Info().Str("session_id", o.s.id).Msg("Listening")
}

// stopListening tears down the current listening period, if any, and
// invalidates its pending events.
func (o *Orchestrator) stopListening() {
	o.stopTimer(&o.s.commitTimer)
	o.s.commitPending = false
	o.s.buffer = nil
	o.setInterim("")

	if !o.s.listening && o.s.listen == nil {
		return
	}
	o.s.listening = false
	o.s.listenGen++

	if set := o.s.listen; set != nil {
		o.s.listen = nil
		set.close()
	}
}

// pump streams captured audio to the channel in fixed-size frames. A
// queued commit chunk is sent after everything captured so far, including
// the partial frame held by the chunker.
func (o *Orchestrator) pump(ctx context.Context, gen, listenGen uint64, set *listenSet) {
	defer close(set.pumpDone)

	sourceRate := set.stream.SampleRate()
	chunker := audio.NewFrameChunker(chunkMS, sourceRate)
	samples := set.stream.Samples()

	send := func(chunk domain.AudioChunk) bool {
		if err := set.channel.Send(chunk); err != nil {
			log.Debug().Err(err).Msg("Audio pump stopped")
			return false
		}
		return true
	}
	sendFrames := func(frames ...[]float32) bool {
		for _, frame := range frames {
			if len(frame) == 0 {
				continue
			}
			chunk := domain.AudioChunk{
				AudioBase64: audio.EncodeSamplesToBase64(frame, sourceRate, o.cfg.STTSampleRate),
				SampleRate:  o.cfg.STTSampleRate,
			}
			if !send(chunk) {
				return false
			}
		}
		return true
	}
	captureStopped := func() {
		if ctx.Err() != nil {
			return
		}
		select {
		case o.events <- captureEnded{gen: gen, listenGen: listenGen, err: set.stream.Err()}:
		case <-ctx.Done():
		case <-o.done:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-samples:
			if !ok {
				captureStopped()
				return
			}
			if !sendFrames(chunker.AddSamples(buf)...) {
				return
			}
		case commit := <-set.commit:
			stopped := false
		drain:
			for {
				select {
				case buf, ok := <-samples:
					if !ok {
						stopped = true
						break drain
					}
					if !sendFrames(chunker.AddSamples(buf)...) {
						return
					}
				default:
					break drain
				}
			}
			if !sendFrames(chunker.Flush()) || !send(commit) {
				return
			}
			if stopped {
				captureStopped()
				return
			}
		}
	}
}

// forward relays channel events into the loop until the channel closes.
func (o *Orchestrator) forward(gen, listenGen uint64, channel ports.TranscriptionChannel) {
	for ev := range channel.Events() {
		if e, ok := channelEvent(gen, listenGen, ev); ok {
			if !o.post(e) {
				return
			}
		}
	}
	o.post(channelClosed{gen: gen, listenGen: listenGen, err: channel.Err()})
}

func (o *Orchestrator) onPartial(text string) {
	if o.s.processingTurn || o.s.aiSpeaking {
		return
	}
	if o.s.opts.Strategy == domain.CommitManual && len(o.s.buffer) > 0 {
		text = strings.Join(append(append([]string(nil), o.s.buffer...), text), " ")
	}
	o.setInterim(text)
}

// onChannelError closes the channel and retries listening once. The budget
// is restored by the next committed transcript.
func (o *Orchestrator) onChannelError(ev channelError) {
	log.Warn().
		Str("session_id", o.s.id).
		Str("code", ev.code).
		Str("message", ev.message).
		Bool("retried", o.s.retried).
		Msg("Transcription channel error")

	o.stopListening()

	if o.s.retried {
		o.fail(fmt.Sprintf("transcription error (%s): %s", ev.code, ev.message))
		return
	}
	o.s.retried = true
	o.startListening()
}

func (o *Orchestrator) onCaptureEnded(err error) {
	message := "microphone stopped"
	if err != nil {
		message = fmt.Sprintf("microphone stopped: %v", err)
	}
	o.fail(message)
}

func (o *Orchestrator) onChannelClosed(err error) {
	message := "transcription connection closed"
	if err != nil {
		message = fmt.Sprintf("transcription connection lost: %v", err)
	}
	o.fail(message)
}
