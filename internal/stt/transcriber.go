package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/audio"
)

// MinAudioBytes is the smallest payload accepted for batch transcription.
const MinAudioBytes = 100

var (
	ErrAudioTooShort     = errors.New("audio payload is too short")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrPoolStopped       = errors.New("transcriber pool is stopped")
)

// Transcriber interface for batch STT backends
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, format string) (string, error)
	Close() error
}

type job struct {
	ctx    context.Context
	data   []byte
	format string
	result chan jobResult
}

type jobResult struct {
	text string
	err  error
}

// TranscriberPool bounds how many transcriptions run against one backend at
// a time. It is itself a Transcriber.
type TranscriberPool struct {
	transcriber Transcriber
	workers     int
	jobChan     chan job
	stopChan    chan struct{}
	wg          sync.WaitGroup
	started     bool
	mutex       sync.Mutex
}

func NewTranscriberPool(transcriber Transcriber, workers int) *TranscriberPool {
	if workers <= 0 {
		workers = 1
	}
	return &TranscriberPool{
		transcriber: transcriber,
		workers:     workers,
		jobChan:     make(chan job, workers*2),
		stopChan:    make(chan struct{}),
	}
}

func (p *TranscriberPool) Start() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.started {
		return fmt.Errorf("pool already started")
	}

	p.started = true

	// Start worker goroutines
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Info().Int("workers", p.workers).Msg("Started STT worker pool")
	return nil
}

func (p *TranscriberPool) worker(workerID int) {
	defer p.wg.Done()

	log.Debug().Int("worker_id", workerID).Msg("STT worker started")
	defer log.Debug().Int("worker_id", workerID).Msg("STT worker stopped")

	for {
		select {
		case j := <-p.jobChan:
			if err := j.ctx.Err(); err != nil {
				j.result <- jobResult{err: err}
				continue
			}

			text, err := p.transcriber.Transcribe(j.ctx, j.data, j.format)
			if err != nil {
				log.Error().
					Err(err).
					Int("worker_id", workerID).
					Int("audio_bytes", len(j.data)).
					Msg("Failed to transcribe audio")
			}
			j.result <- jobResult{text: text, err: err}

		case <-p.stopChan:
			return
		}
	}
}

// Transcribe queues the audio and waits for a worker to handle it.
func (p *TranscriberPool) Transcribe(ctx context.Context, data []byte, format string) (string, error) {
	select {
	case <-p.stopChan:
		return "", ErrPoolStopped
	default:
	}

	j := job{ctx: ctx, data: data, format: format, result: make(chan jobResult, 1)}

	select {
	case p.jobChan <- j:
	case <-p.stopChan:
		return "", ErrPoolStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-j.result:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the workers and closes the wrapped transcriber.
func (p *TranscriberPool) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.started {
		close(p.stopChan)

		// Wait for all workers to finish
		p.wg.Wait()
		p.started = false
		log.Info().Msg("Stopped STT worker pool")
	}

	return p.transcriber.Close()
}

// SpeechGate skips the upstream call for WAV payloads that contain no
// speech. Other formats pass through unchecked.
type SpeechGate struct {
	next     Transcriber
	detector audio.SpeechDetector
}

func NewSpeechGate(next Transcriber, detector audio.SpeechDetector) *SpeechGate {
	return &SpeechGate{next: next, detector: detector}
}

func (g *SpeechGate) Transcribe(ctx context.Context, data []byte, format string) (string, error) {
	info, pcm, err := audio.DecodeWav(data)
	if err == nil && !g.detector.ContainsSpeech(pcm, info.SampleRate) {
		log.Debug().
			Int("sample_rate", info.SampleRate).
			Int("samples", len(pcm)).
			Msg("No speech detected, skipping transcription")
		return "", nil
	}
	return g.next.Transcribe(ctx, data, format)
}

func (g *SpeechGate) Close() error {
	err := g.next.Close()
	if derr := g.detector.Close(); err == nil {
		err = derr
	}
	return err
}
