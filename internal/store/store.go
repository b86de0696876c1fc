package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/domain"
)

const (
	journalFile   = "journal.json"
	previewLength = 100
)

var ErrEntryNotFound = errors.New("journal entry not found")

// FileStore keeps journal entries as one most-recent-first JSON list.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
	now     func() time.Time
}

func NewFileStore(baseDir string) (*FileStore, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
		now:     time.Now,
	}, nil
}

// SaveTranscript records a finished session as a new journal entry.
func (s *FileStore) SaveTranscript(transcript []domain.Entry) (domain.JournalEntry, error) {
	entry := domain.JournalEntry{
		ID:             uuid.NewString(),
		ISODate:        s.now().UTC().Format(time.RFC3339),
		PreviewText:    Preview(transcript),
		FullTranscript: append([]domain.Entry(nil), transcript...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	entries = append([]domain.JournalEntry{entry}, entries...)
	if err := s.write(entries); err != nil {
		return domain.JournalEntry{}, err
	}

	log.Info().
		Str("entry_id", entry.ID).
		Int("lines", len(transcript)).
		Msg("Saved journal entry")

	return entry, nil
}

// List returns all entries, most recent first. A missing or corrupt file
// yields an empty list.
func (s *FileStore) List() []domain.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Get(id string) (domain.JournalEntry, error) {
	for _, entry := range s.List() {
		if entry.ID == id {
			return entry, nil
		}
	}
	return domain.JournalEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	kept := entries[:0]
	found := false
	for _, entry := range entries {
		if entry.ID == id {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	if err := s.write(kept); err != nil {
		return err
	}

	log.Info().Str("entry_id", id).Msg("Deleted journal entry")
	return nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.baseDir, journalFile)
}

func (s *FileStore) load() []domain.JournalEntry {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", s.path()).Msg("Failed to read journal, starting empty")
		}
		return []domain.JournalEntry{}
	}

	var entries []domain.JournalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("file", s.path()).Msg("Journal file is corrupt, starting empty")
		return []domain.JournalEntry{}
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	return entries
}

func (s *FileStore) write(entries []domain.JournalEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write journal file: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("failed to replace journal file: %w", err)
	}
	return nil
}

// Preview joins what the user said and cuts it to 100 characters, adding an
// ellipsis when truncated. Sessions without user speech fall back to the
// whole transcript.
func Preview(transcript []domain.Entry) string {
	var parts []string
	for _, entry := range transcript {
		if entry.Speaker == domain.SpeakerUser {
			parts = append(parts, entry.Text)
		}
	}
	if len(parts) == 0 {
		for _, entry := range transcript {
			parts = append(parts, entry.Text)
		}
	}

	text := strings.TrimSpace(strings.Join(parts, " "))
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
