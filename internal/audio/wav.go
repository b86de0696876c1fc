package audio

import (
	"encoding/binary"
)

const (
	// WavHeaderSize is the size of the canonical RIFF/WAVE header written by EncodeAudioBufferToWav.
	WavHeaderSize = 44

	wavBitsPerSample = 16
)

// DownmixToMono averages all channels sample by sample. Shorter channels are
// treated as silent past their end.
func DownmixToMono(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		out := make([]float32, len(channels[0]))
		copy(out, channels[0])
		return out
	}

	length := 0
	for _, ch := range channels {
		if len(ch) > length {
			length = len(ch)
		}
	}

	mono := make([]float32, length)
	for i := range mono {
		var sum float32
		for _, ch := range channels {
			if i < len(ch) {
				sum += ch[i]
			}
		}
		mono[i] = sum / float32(len(channels))
	}
	return mono
}

// EncodeAudioBufferToWav builds a mono 16 bit PCM WAV file. Multi-channel
// input is averaged down to one channel first.
func EncodeAudioBufferToWav(channels [][]float32, sampleRate int) []byte {
	pcm := PCM16ToBytes(FloatToPCM16(DownmixToMono(channels)))
	return pcmToWAV(pcm, sampleRate, 1)
}

func pcmToWAV(pcm []byte, sampleRate, numChannels int) []byte {
	dataSize := len(pcm)
	blockAlign := numChannels * wavBitsPerSample / 8
	byteRate := sampleRate * blockAlign

	wav := make([]byte, WavHeaderSize, WavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")

	// fmt sub-chunk
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(wav[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(wav[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(wav[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:36], wavBitsPerSample)

	// data sub-chunk
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))

	return append(wav, pcm...)
}
