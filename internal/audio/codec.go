package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// Resample converts samples from sourceRate to targetRate by linear
// interpolation between neighbouring samples. It is not band-limited.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate <= 0 || targetRate <= 0 || sourceRate == targetRate || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(sourceRate) / float64(targetRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	out := make([]float32, outLen)
	last := len(samples) - 1

	for i := range out {
		pos := float64(i) * ratio
		lo := int(pos)
		if lo > last {
			lo = last
		}
		hi := lo + 1
		if hi > last {
			hi = last
		}
		frac := float32(pos - float64(lo))
		out[i] = samples[lo]*(1-frac) + samples[hi]*frac
	}
	return out
}

// FloatToPCM16 clamps samples to [-1, 1] and quantizes them to signed 16 bit.
func FloatToPCM16(samples []float32) []int16 {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			pcm[i] = int16(s * 0x8000)
		} else {
			pcm[i] = int16(s * 0x7FFF)
		}
	}
	return pcm
}

// PCM16ToBytes encodes samples as little-endian bytes.
func PCM16ToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, sample := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// BytesToPCM16 decodes little-endian 16 bit samples. A trailing odd byte is ignored.
func BytesToPCM16(data []byte) []int16 {
	pcm := make([]int16, len(data)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return pcm
}

// EncodeSamplesToBase64 resamples (when the rates differ), quantizes to
// 16 bit PCM and returns the little-endian bytes as standard base64.
func EncodeSamplesToBase64(samples []float32, sourceRate, targetRate int) string {
	if sourceRate != targetRate {
		samples = Resample(samples, sourceRate, targetRate)
	}
	return base64.StdEncoding.EncodeToString(PCM16ToBytes(FloatToPCM16(samples)))
}

// EncodeSilenceToBase64 returns sampleCount zero samples as base64 PCM. It is
// used to make the transcription service flush buffered audio.
func EncodeSilenceToBase64(sampleCount int) string {
	if sampleCount < 0 {
		sampleCount = 0
	}
	return base64.StdEncoding.EncodeToString(make([]byte, sampleCount*2))
}
