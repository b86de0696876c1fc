package vosk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alphacep/vosk-api/go"
	"github.com/rs/zerolog/log"

	"github.com/user/voice-journal/internal/audio"
	"github.com/user/voice-journal/internal/stt"
)

type VoskTranscriber struct {
	model *vosk.VoskModel
}

type VoskResult struct {
	Text   string     `json:"text"`
	Result []VoskWord `json:"result"`
}

type VoskWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

func NewVoskTranscriber(modelPath string) (*VoskTranscriber, error) {
	log.Info().Str("model_path", modelPath).Msg("Loading Vosk model")

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load Vosk model from %s: %w", modelPath, err)
	}

	log.Info().Msg("Vosk model loaded successfully")

	return &VoskTranscriber{model: model}, nil
}

// Transcribe accepts 16 bit PCM WAV only. A recognizer is created per call
// at the recording's sample rate.
func (v *VoskTranscriber) Transcribe(ctx context.Context, data []byte, format string) (string, error) {
	info, pcm, err := audio.DecodeWav(data)
	if err != nil {
		return "", fmt.Errorf("%w: vosk needs wav input (%s): %v", stt.ErrUnsupportedFormat, format, err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	recognizer, err := vosk.NewRecognizer(v.model, float64(info.SampleRate))
	if err != nil {
		return "", fmt.Errorf("failed to create Vosk recognizer: %w", err)
	}
	defer recognizer.Free()

	if result := recognizer.AcceptWaveform(audio.PCM16ToBytes(pcm)); result == -1 {
		return "", fmt.Errorf("failed to process audio")
	}

	jsonResult := recognizer.FinalResult()

	var voskResult VoskResult
	if err := json.Unmarshal([]byte(jsonResult), &voskResult); err != nil {
		log.Warn().
			Err(err).
			Str("json", jsonResult).
			Msg("Failed to parse Vosk result")
		return "", fmt.Errorf("failed to parse Vosk result: %w", err)
	}

	text := strings.TrimSpace(voskResult.Text)

	log.Debug().
		Int("sample_rate", info.SampleRate).
		Int("words", len(voskResult.Result)).
		Str("text", text).
		Msg("Vosk transcription completed")

	return text, nil
}

func (v *VoskTranscriber) Close() error {
	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
	return nil
}
