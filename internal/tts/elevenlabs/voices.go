package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

type Voice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// FallbackVoices is served when the voice list cannot be fetched.
var FallbackVoices = []Voice{
	{VoiceID: DefaultVoiceID, Name: "Rachel"},
	{VoiceID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi"},
	{VoiceID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella"},
	{VoiceID: "ErXwobaYiN019PkySvjV", Name: "Antoni"},
	{VoiceID: "TxGEqnHWrfWFTfGW9XjX", Name: "Josh"},
}

// Voices lists the account's voices. Upstream failures fall back to a fixed
// list; only a missing API key is reported as an error. The configured
// default voice is always present.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	voices, err := c.fetchVoices(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list voices, using fallback list")
		voices = append([]Voice(nil), FallbackVoices...)
	}

	return ensureVoice(voices, c.cfg.DefaultVoiceID), nil
}

func (c *Client) fetchVoices(ctx context.Context) ([]Voice, error) {
	data, err := c.Do(ctx, http.MethodGet, "/v1/voices", "", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	if len(result.Voices) == 0 {
		return nil, errors.New("voice list is empty")
	}
	return result.Voices, nil
}

func ensureVoice(voices []Voice, voiceID string) []Voice {
	for _, v := range voices {
		if v.VoiceID == voiceID {
			return voices
		}
	}

	name := "Default"
	for _, v := range FallbackVoices {
		if v.VoiceID == voiceID {
			name = v.Name
		}
	}
	return append([]Voice{{VoiceID: voiceID, Name: name}}, voices...)
}
