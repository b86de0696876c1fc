package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/voice-journal/internal/backend"
	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/store"
)

func newEntriesCmd() *cobra.Command {
	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "Browse saved journal entries",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := store.NewFileStore(cfg.JournalDir)
			if err != nil {
				return err
			}

			entries := journal.List()
			if len(entries) == 0 {
				fmt.Println("No journal entries yet. Start one with 'voice-journal talk'.")
				return nil
			}
			for _, entry := range entries {
				fmt.Printf("%s  %s\n", shortID(entry.ID), entry.ISODate)
				fmt.Printf("  %s\n\n", entry.PreviewText)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [entry-id]",
		Short: "Print the full transcript of an entry",
		Long:  "Print the full transcript of an entry by ID or ID prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := findEntry(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s  %s\n\n", entry.ID, entry.ISODate)
			for _, line := range entry.FullTranscript {
				fmt.Printf("%s: %s\n", speakerLabel(line.Speaker), line.Text)
			}
			return nil
		},
	}

	reformatCmd := &cobra.Command{
		Use:   "reformat [entry-id]",
		Short: "Rewrite an entry as a first-person journal narrative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := findEntry(args[0])
			if err != nil {
				return err
			}

			text, err := backend.NewClient(cfg.BackendURL).Reformat(cmd.Context(), entry.FullTranscript)
			if err != nil {
				return fmt.Errorf("failed to reformat entry: %w", err)
			}
			fmt.Println(text)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [entry-id]",
		Short: "Delete a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := findEntry(args[0])
			if err != nil {
				return err
			}

			journal, err := store.NewFileStore(cfg.JournalDir)
			if err != nil {
				return err
			}
			if err := journal.Delete(entry.ID); err != nil {
				return fmt.Errorf("failed to delete entry: %w", err)
			}
			fmt.Printf("Deleted %s\n", shortID(entry.ID))
			return nil
		},
	}

	entriesCmd.AddCommand(listCmd, showCmd, reformatCmd, deleteCmd)
	return entriesCmd
}

// findEntry resolves a full id or an unambiguous id prefix.
func findEntry(id string) (domain.JournalEntry, error) {
	journal, err := store.NewFileStore(cfg.JournalDir)
	if err != nil {
		return domain.JournalEntry{}, err
	}

	entry, err := journal.Get(id)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, store.ErrEntryNotFound) {
		return domain.JournalEntry{}, err
	}

	var matches []domain.JournalEntry
	for _, candidate := range journal.List() {
		if strings.HasPrefix(candidate.ID, id) {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return domain.JournalEntry{}, fmt.Errorf("entry not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return domain.JournalEntry{}, fmt.Errorf("entry id %q is ambiguous, %d entries match", id, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
