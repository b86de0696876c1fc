package audio

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResample(t *testing.T) {
	t.Run("same rate returns a copy", func(t *testing.T) {
		in := []float32{0.1, 0.2, 0.3}
		out := Resample(in, 16000, 16000)

		assert.Equal(t, in, out)
		out[0] = 1
		assert.Equal(t, float32(0.1), in[0])
	})

	t.Run("downsample length", func(t *testing.T) {
		out := Resample(make([]float32, 4800), 48000, 16000)
		assert.Len(t, out, 1600)
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		out := Resample([]float32{0, 1}, 8000, 16000)
		require.Len(t, out, 4)
		assert.InDelta(t, 0.0, out[0], 1e-6)
		assert.InDelta(t, 0.5, out[1], 1e-6)
		assert.InDelta(t, 1.0, out[2], 1e-6)
		assert.InDelta(t, 1.0, out[3], 1e-6)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Resample(nil, 48000, 16000))
	})
}

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full positive", 1, 32767},
		{"full negative", -1, -32768},
		{"clamped positive", 1.5, 32767},
		{"clamped negative", -3, -32768},
		{"half", 0.5, 16383},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FloatToPCM16([]float32{tt.in})
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestPCM16Bytes(t *testing.T) {
	pcm := []int16{0, 1, -1, 32767, -32768}
	data := PCM16ToBytes(pcm)

	require.Len(t, data, 10)
	assert.Equal(t, []byte{0x01, 0x00}, data[2:4])
	assert.Equal(t, []byte{0xff, 0xff}, data[4:6])
	assert.Equal(t, pcm, BytesToPCM16(data))
	assert.Len(t, BytesToPCM16([]byte{1, 2, 3}), 1)
}

func TestEncodeSamplesToBase64(t *testing.T) {
	encoded := EncodeSamplesToBase64(make([]float32, 480), 48000, 16000)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Len(t, raw, 160*2)

	encoded = EncodeSamplesToBase64([]float32{1, -1}, 16000, 16000)
	raw, err = base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, []int16{32767, -32768}, BytesToPCM16(raw))
}

func TestEncodeSilenceToBase64(t *testing.T) {
	assert.Equal(t, "AAAAAAAA", EncodeSilenceToBase64(3))
	assert.Equal(t, "", EncodeSilenceToBase64(0))
	assert.Equal(t, "", EncodeSilenceToBase64(-5))

	raw, err := base64.StdEncoding.DecodeString(EncodeSilenceToBase64(1600))
	require.NoError(t, err)
	assert.Len(t, raw, 3200)
	for _, b := range raw {
		if b != 0 {
			t.Fatalf("expected silence, got byte %d", b)
		}
	}
}
