package vosk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/voice-journal/internal/stt"
)

func TestVoskTranscriber_RejectsNonWav(t *testing.T) {
	v := &VoskTranscriber{}

	_, err := v.Transcribe(context.Background(), []byte("\x1aE\xdf\xa3 webm bytes"), "webm")
	assert.ErrorIs(t, err, stt.ErrUnsupportedFormat)
	assert.NoError(t, v.Close())
}
