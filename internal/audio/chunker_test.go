package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameChunker(t *testing.T) {
	c := NewFrameChunker(10, 16000)

	frames := c.AddSamples(make([]float32, 100))
	assert.Empty(t, frames)

	in := make([]float32, 300)
	for i := range in {
		in[i] = float32(i)
	}
	frames = c.AddSamples(in)
	require.Len(t, frames, 2)
	assert.Len(t, frames[0], 160)
	assert.Equal(t, float32(0), frames[0][100])
	assert.Equal(t, float32(59), frames[0][159])
	assert.Equal(t, float32(60), frames[1][0])
	assert.Equal(t, float32(219), frames[1][159])

	rest := c.Flush()
	assert.Len(t, rest, 80)
	assert.Nil(t, c.Flush())
}

func TestFrameChunker_MinimumFrame(t *testing.T) {
	c := NewFrameChunker(0, 16000)
	frames := c.AddSamples([]float32{1, 2, 3})
	require.Len(t, frames, 3)
	assert.Len(t, frames[0], 1)
}

func TestWebRTCVAD_Silence(t *testing.T) {
	vad, err := NewWebRTCVAD()
	require.NoError(t, err)
	defer vad.Close()

	assert.False(t, vad.ContainsSpeech(make([]int16, 16000), 16000))
	assert.False(t, vad.ContainsSpeech(make([]int16, 11025), 11025))
}

func TestRMSIsSpeech(t *testing.T) {
	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = 4000
	}
	assert.True(t, rmsIsSpeech(loud, 500))
	assert.False(t, rmsIsSpeech(make([]int16, 100), 500))
	assert.False(t, rmsIsSpeech(nil, 500))
}
