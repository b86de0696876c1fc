package session

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/audio"
	"github.com/user/voice-journal/internal/domain"
)

// commitSilenceMS is the trailing silence sent with a manual commit so the
// channel flushes audio it is still holding.
const commitSilenceMS = 300

// requestCommit starts a manual commit: flush the channel and wait for the
// last fragment or the deadline, whichever comes first.
func (o *Orchestrator) requestCommit() {
	if o.s.opts.Strategy != domain.CommitManual || o.s.listen == nil {
		return
	}
	if o.s.processingTurn || o.s.aiSpeaking || o.s.commitPending {
		return
	}

	samples := o.cfg.STTSampleRate * commitSilenceMS / 1000
	chunk := domain.AudioChunk{
		AudioBase64: audio.EncodeSilenceToBase64(samples),
		SampleRate:  o.cfg.STTSampleRate,
		Commit:      true,
	}
	select {
	case o.s.listen.commit <- chunk:
	default:
		// the deadline still resolves the request
		log.Warn().Str("session_id", o.s.id).Msg("Commit chunk already queued")
	}

	o.s.commitPending = true
	o.s.commitSeq++
	timeout := commitTimeout{gen: o.s.gen, listenGen: o.s.listenGen, seq: o.s.commitSeq}
	o.s.commitTimer = o.afterFunc(o.cfg.CommitTimeout, func() {
		o.post(timeout)
	})

	log.Debug().
		Str("session_id", o.s.id).
		Int("buffered", len(o.s.buffer)).
		Msg("Manual commit requested")
}

func (o *Orchestrator) onCommitTimeout(ev commitTimeout) {
	if ev.gen != o.s.gen || ev.listenGen != o.s.listenGen || ev.seq != o.s.commitSeq || !o.s.commitPending {
		return
	}
	o.s.commitTimer = nil
	o.s.commitPending = false

	if len(o.s.buffer) == 0 {
		log.Debug().Str("session_id", o.s.id).Msg("Commit deadline passed with nothing buffered")
		return
	}
	log.Debug().Str("session_id", o.s.id).Msg("Commit deadline passed, finalizing buffered speech")
	o.finalize(strings.Join(o.s.buffer, " "))
}

func (o *Orchestrator) onCommitted(text string) {
	if o.s.aiSpeaking || o.s.processingTurn {
		log.Debug().Str("session_id", o.s.id).Msg("Dropping transcript while assistant holds the turn")
		return
	}
	text = strings.TrimSpace(text)
	if text != "" {
		o.s.retried = false
	}

	if o.s.opts.Strategy != domain.CommitManual {
		if text == "" {
			return
		}
		o.finalize(text)
		return
	}

	if text != "" {
		o.s.buffer = append(o.s.buffer, text)
		o.setInterim(strings.Join(o.s.buffer, " "))
	}
	if !o.s.commitPending {
		return
	}

	o.stopTimer(&o.s.commitTimer)
	o.s.commitPending = false
	if len(o.s.buffer) > 0 {
		o.finalize(strings.Join(o.s.buffer, " "))
	}
}

// finalize ends the user turn and starts the reply pipeline.
func (o *Orchestrator) finalize(text string) {
	if o.s.processingTurn || o.s.aiSpeaking {
		return
	}

	o.s.processingTurn = true
	o.stopListening()
	o.appendEntry(domain.SpeakerUser, text)

	log.Info().
		Str("session_id", o.s.id).
		Int("turns", len(o.s.transcript)).
		Msg("User turn finalized")

	gen, ctx, prompt := o.s.gen, o.s.ctx, o.s.opts.SystemPrompt
	transcript := o.transcriptCopy()
	go func() {
		text, err := o.deps.Dialogue.NextQuestion(ctx, prompt, transcript)
		o.post(dialogueResponse{gen: gen, text: text, err: err})
	}()
}
