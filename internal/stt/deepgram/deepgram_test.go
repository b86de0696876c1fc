package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTranscriber(t *testing.T, handler http.HandlerFunc) *DeepgramTranscriber {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d := NewDeepgramTranscriber("key", "nova-2", "en")
	d.baseURL = srv.URL + "/v1/listen"
	return d
}

func TestDeepgramTranscriber_Transcribe(t *testing.T) {
	d := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token key", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/webm", r.Header.Get("Content-Type"))
		assert.Equal(t, "nova-2", r.URL.Query().Get("model"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "audio-bytes", string(body))

		_, _ = io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"hello world","confidence":0.98},{"transcript":"yellow world"}]}]}}`)
	})

	text, err := d.Transcribe(context.Background(), []byte("audio-bytes"), "webm")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestDeepgramTranscriber_NoChannels(t *testing.T) {
	d := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":{"channels":[]}}`)
	})

	text, err := d.Transcribe(context.Background(), []byte("audio"), "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestDeepgramTranscriber_APIError(t *testing.T) {
	d := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"err_code":"Bad Request","err_msg":"corrupt audio"}`)
	})

	_, err := d.Transcribe(context.Background(), []byte("audio"), "")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "corrupt audio", apiErr.Message)
}

func TestDeepgramTranscriber_NotConfigured(t *testing.T) {
	d := NewDeepgramTranscriber("", "nova-2", "en")
	_, err := d.Transcribe(context.Background(), []byte("audio"), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/*", contentType(""))
	assert.Equal(t, "audio/mpeg", contentType("mp3"))
	assert.Equal(t, "audio/wav", contentType("WAV"))
	assert.Equal(t, "audio/webm;codecs=opus", contentType("audio/webm;codecs=opus"))
}
