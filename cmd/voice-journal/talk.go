package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/voice-journal/internal/audio"
	"github.com/user/voice-journal/internal/backend"
	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/session"
	"github.com/user/voice-journal/internal/store"
	"github.com/user/voice-journal/internal/stt/realtime"
)

type talkOptions struct {
	manual  bool
	voiceID string
	prompt  string
}

func newTalkCmd() *cobra.Command {
	var opts talkOptions

	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Start a spoken journaling session",
		Long: `Start a spoken journaling session using the default microphone and speaker.

In manual mode press Enter to finish your turn. Type q and Enter to end the
session and save it to the journal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTalk(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.manual, "manual", false, "Finish turns with Enter instead of detecting silence")
	cmd.Flags().StringVar(&opts.voiceID, "voice", "", "ElevenLabs voice id for the interviewer")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "System prompt for the interviewer")
	return cmd
}

func runTalk(ctx context.Context, opts talkOptions) error {
	terminate, err := audio.InitDevices()
	if err != nil {
		return fmt.Errorf("failed to initialize audio devices: %w", err)
	}
	defer terminate()

	journal, err := store.NewFileStore(cfg.JournalDir)
	if err != nil {
		return err
	}

	proxy := backend.NewClient(cfg.BackendURL)

	orchestrator := session.New(session.Deps{
		Microphone: audio.NewMicrophone(cfg.MicSampleRate, cfg.MicFramesPerBuffer),
		Transcriber: realtime.NewProvider(realtime.Config{
			APIBaseURL: cfg.ElevenLabsAPIBase,
			ModelID:    cfg.ScribeModelID,
			Language:   cfg.ScribeLanguage,
		}),
		Tokens:      proxy,
		Dialogue:    proxy,
		Synthesizer: proxy,
		Speaker:     audio.NewSpeaker(cfg.SpeakerSampleRate),
		Journal:     journal,
		Observer:    newConsole(os.Stdout),
	}, session.Config{
		STTSampleRate: cfg.STTSampleRate,
		VAD: domain.VADParams{
			SilenceThresholdSecs: cfg.ScribeVADSilenceSecs,
			Threshold:            cfg.ScribeVADThreshold,
			MinSpeechDurationMS:  cfg.ScribeMinSpeechMS,
		},
		CommitTimeout: cfg.CommitTimeout,
		ListenDelay:   cfg.ListenDelay,
	})
	defer orchestrator.Close()

	strategy := domain.CommitVAD
	if opts.manual {
		strategy = domain.CommitManual
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Connect(ctx, session.Options{
		Strategy:     strategy,
		VoiceID:      opts.voiceID,
		SystemPrompt: opts.prompt,
	}); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	if opts.manual {
		fmt.Println("Press Enter when you finish speaking. Type q to end the session.")
	} else {
		fmt.Println("Speak freely. Type q to end the session.")
	}

	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			orchestrator.Disconnect()
			return nil
		case line, ok := <-lines:
			if !ok {
				orchestrator.Disconnect()
				return nil
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "q", "quit", "exit":
				orchestrator.Disconnect()
				return nil
			case "":
				orchestrator.CommitManual()
			}
		}
	}
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// console prints session updates. Callbacks arrive from the session loop
// one at a time.
type console struct {
	out     io.Writer
	printed int
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) StatusChanged(status domain.Status, message string) {
	if message != "" {
		fmt.Fprintf(c.out, "[%s] %s\n", status, message)
		return
	}
	fmt.Fprintf(c.out, "[%s]\n", status)
}

func (c *console) TranscriptChanged(transcript []domain.Entry) {
	if len(transcript) < c.printed {
		c.printed = 0
	}
	for _, entry := range transcript[c.printed:] {
		fmt.Fprintf(c.out, "%s: %s\n", speakerLabel(entry.Speaker), entry.Text)
	}
	c.printed = len(transcript)
}

func (c *console) InterimChanged(text string) {
	if text != "" {
		fmt.Fprintf(c.out, "  ... %s\n", text)
	}
}

func speakerLabel(speaker domain.Speaker) string {
	if speaker == domain.SpeakerAssistant {
		return "Interviewer"
	}
	return "You"
}
