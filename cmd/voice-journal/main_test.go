package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/voice-journal/internal/backend"
	"github.com/user/voice-journal/internal/config"
	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/store"
)

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)

	c.StatusChanged(domain.StatusConnected, "")
	c.TranscriptChanged([]domain.Entry{{Speaker: domain.SpeakerUser, Text: "hello"}})
	c.InterimChanged("")
	c.InterimChanged("how are")
	c.TranscriptChanged([]domain.Entry{
		{Speaker: domain.SpeakerUser, Text: "hello"},
		{Speaker: domain.SpeakerAssistant, Text: "How are you?"},
	})
	c.TranscriptChanged(nil)
	c.StatusChanged(domain.StatusError, "microphone lost")

	assert.Equal(t, "[connected]\n"+
		"You: hello\n"+
		"  ... how are\n"+
		"Interviewer: How are you?\n"+
		"[error] microphone lost\n", out.String())
}

func TestFindEntry(t *testing.T) {
	cfg = &config.Config{JournalDir: t.TempDir()}
	t.Cleanup(func() { cfg = nil })

	journal, err := store.NewFileStore(cfg.JournalDir)
	require.NoError(t, err)
	saved, err := journal.SaveTranscript([]domain.Entry{{Speaker: domain.SpeakerUser, Text: "a walk"}})
	require.NoError(t, err)

	got, err := findEntry(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)

	got, err = findEntry(saved.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)

	_, err = findEntry("no-such-entry")
	assert.Error(t, err)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678", shortID("123456789abc"))
}

func TestPrintVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/voices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel"},{"voice_id":"v2","name":"Adam"}]}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, printVoices(context.Background(), &out, backend.NewClient(srv.URL), "v2"))
	assert.Equal(t, "  v1                       Rachel\n* v2                       Adam\n", out.String())
}

type stubStream struct {
	samples chan []float32
	err     error
}

func (s *stubStream) Samples() <-chan []float32 { return s.samples }
func (s *stubStream) SampleRate() int           { return 16000 }
func (s *stubStream) Err() error                { return s.err }
func (s *stubStream) Close() error              { return nil }

func TestRecord(t *testing.T) {
	t.Run("until stopped", func(t *testing.T) {
		stream := &stubStream{samples: make(chan []float32, 2)}
		stream.samples <- []float32{0.1, 0.2}
		stream.samples <- []float32{0.3}
		close(stream.samples)

		samples, err := record(context.Background(), stream, make(chan struct{}))
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, samples)
	})

	t.Run("device failure", func(t *testing.T) {
		stream := &stubStream{samples: make(chan []float32), err: errors.New("device unplugged")}
		close(stream.samples)

		_, err := record(context.Background(), stream, make(chan struct{}))
		assert.EqualError(t, err, "device unplugged")
	})

	t.Run("stop", func(t *testing.T) {
		stream := &stubStream{samples: make(chan []float32)}
		stop := make(chan struct{})
		close(stop)

		samples, err := record(context.Background(), stream, stop)
		require.NoError(t, err)
		assert.Empty(t, samples)
	})
}

func TestReadClip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.MP3")
	require.NoError(t, os.WriteFile(path, []byte("id3"), 0o644))

	clip, format, err := readClip(path)
	require.NoError(t, err)
	assert.Equal(t, "mp3", format)
	assert.Equal(t, []byte("id3"), clip)

	_, _, err = readClip(filepath.Join(dir, "noext"))
	assert.Error(t, err)
}
