package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/faiface/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAudioBufferToWav(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.25
	}

	data := EncodeAudioBufferToWav([][]float32{samples}, 16000)

	require.Len(t, data, WavHeaderSize+200)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(36+200), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(200), binary.LittleEndian.Uint32(data[40:44]))
}

func TestEncodeAudioBufferToWav_Downmix(t *testing.T) {
	left := []float32{1, 1, 1}
	right := []float32{-1, -1}

	mono := DownmixToMono([][]float32{left, right})
	assert.Equal(t, []float32{0, 0, 0.5}, mono)

	data := EncodeAudioBufferToWav([][]float32{left, right}, 8000)
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]))
	assert.Len(t, data, WavHeaderSize+6)
}

func TestEncodeAudioBufferToWav_Empty(t *testing.T) {
	data := EncodeAudioBufferToWav(nil, 16000)
	require.Len(t, data, WavHeaderSize)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[40:44]))
}

func TestEncodeAudioBufferToWav_DecodesWithBeep(t *testing.T) {
	data := EncodeAudioBufferToWav([][]float32{make([]float32, 1600)}, 16000)

	streamer, format, err := wav.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	defer streamer.Close()

	assert.Equal(t, 16000, int(format.SampleRate))
	assert.Equal(t, 1, format.NumChannels)
	assert.Equal(t, 2, format.Precision)
	assert.Equal(t, 1600, streamer.Len())
}

func TestDecodeWav(t *testing.T) {
	t.Run("mono", func(t *testing.T) {
		data := EncodeAudioBufferToWav([][]float32{{0.5, -0.5, 0}}, 22050)

		info, pcm, err := DecodeWav(data)
		require.NoError(t, err)
		assert.Equal(t, WavInfo{SampleRate: 22050, Channels: 1, BitsPerSample: 16}, info)
		assert.Equal(t, []int16{16383, -16384, 0}, pcm)
	})

	t.Run("stereo is mixed down", func(t *testing.T) {
		pcm := PCM16ToBytes([]int16{100, 300, -200, 200})
		data := pcmToWAV(pcm, 8000, 2)

		info, mono, err := DecodeWav(data)
		require.NoError(t, err)
		assert.Equal(t, 2, info.Channels)
		assert.Equal(t, []int16{200, 0}, mono)
	})

	t.Run("not riff", func(t *testing.T) {
		_, _, err := DecodeWav([]byte("ID3 this is an mp3"))
		assert.ErrorIs(t, err, ErrNotWav)
	})

	t.Run("unsupported bit depth", func(t *testing.T) {
		data := EncodeAudioBufferToWav([][]float32{{0}}, 8000)
		binary.LittleEndian.PutUint16(data[34:36], 24)

		_, _, err := DecodeWav(data)
		assert.Error(t, err)
	})
}

func TestDecodeClip(t *testing.T) {
	_, _, err := DecodeClip(nil)
	assert.Error(t, err)

	data := EncodeAudioBufferToWav([][]float32{make([]float32, 441)}, 44100)
	streamer, format, err := DecodeClip(data)
	require.NoError(t, err)
	defer streamer.Close()
	assert.Equal(t, 44100, int(format.SampleRate))
}
