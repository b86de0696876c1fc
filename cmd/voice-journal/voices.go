package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/voice-journal/internal/backend"
)

func newVoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List interviewer voices available through the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVoices(cmd.Context(), os.Stdout, backend.NewClient(cfg.BackendURL), cfg.ElevenLabsDefaultVoiceID)
		},
	}
}

func printVoices(ctx context.Context, w io.Writer, proxy *backend.Client, defaultID string) error {
	voices, err := proxy.Voices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}
	for _, v := range voices {
		marker := " "
		if v.VoiceID == defaultID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-24s %s\n", marker, v.VoiceID, v.Name)
	}
	return nil
}
