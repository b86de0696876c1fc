package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/ports"
)

// InitDevices initializes the host audio API. The returned func releases it.
func InitDevices() (func(), error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return func() {
		if err := portaudio.Terminate(); err != nil {
			log.Warn().Err(err).Msg("Failed to terminate portaudio")
		}
	}, nil
}

// Microphone captures mono float32 audio from the default input device.
type Microphone struct {
	sampleRate      int
	framesPerBuffer int
}

func NewMicrophone(sampleRate, framesPerBuffer int) *Microphone {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 4096
	}
	return &Microphone{sampleRate: sampleRate, framesPerBuffer: framesPerBuffer}
}

func (m *Microphone) Open(ctx context.Context) (ports.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]float32, m.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start microphone: %w", err)
	}

	c := &captureStream{
		stream:     stream,
		buf:        buf,
		sampleRate: m.sampleRate,
		samples:    make(chan []float32, 32),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.readLoop()

	log.Debug().
		Int("sample_rate", m.sampleRate).
		Int("frames_per_buffer", m.framesPerBuffer).
		Msg("Microphone opened")

	return c, nil
}

type captureStream struct {
	stream     *portaudio.Stream
	buf        []float32
	sampleRate int

	samples chan []float32
	stop    chan struct{}
	done    chan struct{}

	errMu   sync.Mutex
	readErr error

	closeOnce sync.Once
	closeErr  error
}

func (c *captureStream) Samples() <-chan []float32 { return c.samples }

func (c *captureStream) SampleRate() int { return c.sampleRate }

func (c *captureStream) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

func (c *captureStream) readLoop() {
	defer close(c.done)
	defer close(c.samples)

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				continue
			}
			log.Warn().Err(err).Msg("Microphone read failed")
			c.errMu.Lock()
			c.readErr = fmt.Errorf("failed to read microphone: %w", err)
			c.errMu.Unlock()
			return
		}

		out := make([]float32, len(c.buf))
		copy(out, c.buf)

		select {
		case c.samples <- out:
		case <-c.stop:
			return
		default:
			log.Warn().Msg("Capture channel full, dropping buffer")
		}
	}
}

// Close stops the read loop and releases the device. Safe to call twice.
func (c *captureStream) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
		if err := c.stream.Stop(); err != nil {
			c.closeErr = fmt.Errorf("failed to stop microphone: %w", err)
		}
		if err := c.stream.Close(); err != nil && c.closeErr == nil {
			c.closeErr = fmt.Errorf("failed to close microphone: %w", err)
		}
		log.Debug().Msg("Microphone closed")
	})
	return c.closeErr
}
