package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/user/voice-journal/internal/audio"
	"github.com/user/voice-journal/internal/backend"
	"github.com/user/voice-journal/internal/ports"
)

func newTranscribeCmd() *cobra.Command {
	var seconds int

	cmd := &cobra.Command{
		Use:   "transcribe [audio-file]",
		Short: "Transcribe a recording in one request",
		Long: `Transcribe an audio file through the proxy's batch endpoint.

Without a file, record from the default microphone until Enter is pressed or
the time limit passes, then transcribe the recording.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				clip   []byte
				format string
				err    error
			)
			if len(args) == 1 {
				clip, format, err = readClip(args[0])
			} else {
				clip, err = recordWav(ctx, time.Duration(seconds)*time.Second)
				format = "wav"
			}
			if err != nil {
				return err
			}

			text, err := backend.NewClient(cfg.BackendURL).Transcribe(ctx, clip, format)
			if err != nil {
				return fmt.Errorf("failed to transcribe: %w", err)
			}
			fmt.Println(strings.TrimSpace(text))
			return nil
		},
	}

	cmd.Flags().IntVar(&seconds, "seconds", 30, "Maximum recording length when no file is given")
	return cmd
}

// readClip loads an audio file; the format is taken from its extension.
func readClip(path string) ([]byte, string, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if format == "" {
		return nil, "", fmt.Errorf("cannot tell the audio format of %s", path)
	}
	clip, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}
	return clip, format, nil
}

func recordWav(ctx context.Context, limit time.Duration) ([]byte, error) {
	terminate, err := audio.InitDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio devices: %w", err)
	}
	defer terminate()

	stream, err := audio.NewMicrophone(cfg.MicSampleRate, cfg.MicFramesPerBuffer).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}
	defer stream.Close()

	fmt.Println("Recording. Press Enter to stop.")
	enter := make(chan struct{})
	go func() {
		for range readLines(os.Stdin) {
			close(enter)
			return
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	samples, err := record(ctx, stream, enter)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.New("nothing was recorded")
	}
	log.Debug().
		Int("samples", len(samples)).
		Int("sample_rate", stream.SampleRate()).
		Msg("Recording finished")

	return audio.EncodeAudioBufferToWav([][]float32{samples}, stream.SampleRate()), nil
}

// record collects captured samples until stop is closed or ctx ends. A
// device failure discards the recording.
func record(ctx context.Context, stream ports.CaptureStream, stop <-chan struct{}) ([]float32, error) {
	var samples []float32
	for {
		select {
		case <-ctx.Done():
			return samples, nil
		case <-stop:
			return samples, nil
		case buf, ok := <-stream.Samples():
			if !ok {
				if err := stream.Err(); err != nil {
					return nil, err
				}
				return samples, nil
			}
			samples = append(samples, buf...)
		}
	}
}
