package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/ports"
)

// Speaker plays synthesized clips on the default output device.
type Speaker struct {
	sampleRate beep.SampleRate
	initOnce   sync.Once
	initErr    error
}

func NewSpeaker(sampleRate int) *Speaker {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Speaker{sampleRate: beep.SampleRate(sampleRate)}
}

func (s *Speaker) Open() (ports.AudioOutput, error) {
	s.initOnce.Do(func() {
		s.initErr = speaker.Init(s.sampleRate, s.sampleRate.N(time.Second/10))
	})
	if s.initErr != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", s.initErr)
	}
	return &output{rate: s.sampleRate}, nil
}

type output struct {
	rate beep.SampleRate

	mu     sync.Mutex
	closed bool
}

// Play decodes an mp3 or wav clip and blocks until it finished playing or
// ctx is cancelled.
func (o *output) Play(ctx context.Context, clip []byte) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("audio output closed")
	}
	o.mu.Unlock()

	streamer, format, err := DecodeClip(clip)
	if err != nil {
		return err
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != o.rate {
		src = beep.Resample(4, format.SampleRate, o.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(src, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func (o *output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	speaker.Clear()
	return nil
}

// DecodeClip decodes mp3 audio, falling back to wav.
func DecodeClip(clip []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(clip) == 0 {
		return nil, beep.Format{}, fmt.Errorf("failed to decode clip: empty audio")
	}

	if !bytes.HasPrefix(clip, []byte("RIFF")) {
		streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(clip)))
		if err == nil {
			return streamer, format, nil
		}
		log.Debug().Err(err).Msg("Clip is not mp3, trying wav")
	}

	streamer, format, err := wav.Decode(bytes.NewReader(clip))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode clip: %w", err)
	}
	return streamer, format, nil
}
