package audio

import (
	"math"

	"github.com/maxhawkins/go-webrtcvad"
	"github.com/rs/zerolog/log"
)

// SpeechDetector reports whether a PCM buffer contains voiced audio.
type SpeechDetector interface {
	ContainsSpeech(pcm []int16, sampleRate int) bool
	Close() error
}

type WebRTCVAD struct {
	vad          *webrtcvad.VAD
	rmsThreshold float64
	// minVoicedFrames is how many 30ms frames must be voiced to count as speech
	minVoicedFrames int
}

func NewWebRTCVAD() (*WebRTCVAD, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}

	// Set aggressiveness (0-3, where 3 is most aggressive)
	if err := vad.SetMode(2); err != nil {
		return nil, err
	}

	return &WebRTCVAD{
		vad:             vad,
		rmsThreshold:    500.0, // Fallback RMS threshold
		minVoicedFrames: 3,
	}, nil
}

func (v *WebRTCVAD) ContainsSpeech(pcm []int16, sampleRate int) bool {
	frameLen := sampleRate * 30 / 1000
	if !v.vad.ValidRateAndFrameLength(sampleRate, frameLen) {
		return rmsIsSpeech(pcm, v.rmsThreshold)
	}

	voiced := 0
	for start := 0; start+frameLen <= len(pcm); start += frameLen {
		frame := PCM16ToBytes(pcm[start : start+frameLen])
		isSpeech, err := v.vad.Process(sampleRate, frame)
		if err != nil {
			log.Debug().Err(err).Int("sample_rate", sampleRate).Msg("WebRTC VAD failed, using RMS")
			return rmsIsSpeech(pcm, v.rmsThreshold)
		}
		if isSpeech {
			voiced++
			if voiced >= v.minVoicedFrames {
				return true
			}
		}
	}
	return false
}

func rmsIsSpeech(pcm []int16, threshold float64) bool {
	if len(pcm) == 0 {
		return false
	}

	var sum float64
	for _, sample := range pcm {
		sum += float64(sample) * float64(sample)
	}

	rms := math.Sqrt(sum / float64(len(pcm)))
	return rms > threshold
}

func (v *WebRTCVAD) Close() error {
	v.vad = nil
	return nil
}
