package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/domain"
)

func (o *Orchestrator) onDialogue(ev dialogueResponse) {
	if ev.err != nil {
		o.fail(fmt.Sprintf("failed to get a reply: %v", ev.err))
		return
	}

	text := strings.TrimSpace(ev.text)
	if text == "" {
		o.fail("failed to get a reply: empty response")
		return
	}
	o.appendEntry(domain.SpeakerAssistant, text)

	log.Info().
		Str("session_id", o.s.id).
		Int("chars", len(text)).
		Msg("Interviewer replied")

	o.synthesize(text)
}

// synthesize requests audio for an assistant utterance. The turn is held
// until playback ends.
func (o *Orchestrator) synthesize(text string) {
	gen, ctx, voiceID := o.s.gen, o.s.ctx, o.s.opts.VoiceID
	go func() {
		clip, err := o.deps.Synthesizer.Synthesize(ctx, text, voiceID)
		o.post(synthesisResponse{gen: gen, audio: clip, err: err})
	}()
}

func (o *Orchestrator) onSynthesis(ev synthesisResponse) {
	if ev.err != nil {
		o.fail(fmt.Sprintf("failed to synthesize speech: %v", ev.err))
		return
	}
	if o.s.output == nil {
		o.fail("audio output is not available")
		return
	}

	o.s.aiSpeaking = true
	log.Debug().
		Str("session_id", o.s.id).
		Int("bytes", len(ev.audio)).
		Msg("Playing assistant audio")

	gen, ctx, output := o.s.gen, o.s.ctx, o.s.output
	go func() {
		err := output.Play(ctx, ev.audio)
		o.post(playbackEnded{gen: gen, err: err})
	}()
}

// onPlaybackEnded releases the turn and schedules listening after the
// cooldown, so the tail of our own voice is not transcribed.
func (o *Orchestrator) onPlaybackEnded(ev playbackEnded) {
	o.s.aiSpeaking = false
	o.s.processingTurn = false

	if ev.err != nil && !errors.Is(ev.err, context.Canceled) {
		o.fail(fmt.Sprintf("failed to play audio: %v", ev.err))
		return
	}
	if o.s.status != domain.StatusConnected {
		return
	}

	gen := o.s.gen
	o.stopTimer(&o.s.listenTimer)
	o.s.listenTimer = o.afterFunc(o.cfg.ListenDelay, func() {
		o.post(listenTimer{gen: gen})
	})
}
