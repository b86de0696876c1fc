package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/voice-journal/internal/domain"
)

func TestSplitHistory(t *testing.T) {
	t.Run("ends with user", func(t *testing.T) {
		history, last := splitHistory([]domain.ChatMessage{
			{Role: domain.RoleUser, Text: "I had a long day."},
			{Role: domain.RoleAI, Text: "What made it long?"},
			{Role: domain.RoleUser, Text: "Meetings."},
		})

		require.Len(t, history, 2)
		assert.Equal(t, "user", history[0].Role)
		assert.Equal(t, "model", history[1].Role)
		assert.Equal(t, []genai.Part{genai.Text("What made it long?")}, history[1].Parts)
		assert.Equal(t, "Meetings.", last)
	})

	t.Run("ends with assistant", func(t *testing.T) {
		history, last := splitHistory([]domain.ChatMessage{
			{Role: domain.RoleAI, Text: "How are you?"},
		})

		require.Len(t, history, 1)
		assert.Equal(t, "model", history[0].Role)
		assert.Equal(t, continuePrompt, last)
	})
}

func TestResponseText(t *testing.T) {
	t.Run("joins text parts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []genai.Part{genai.Text("What felt "), genai.Text("best today? ")}},
			FinishReason: genai.FinishReasonStop,
		}}}

		text, truncated, err := responseText(resp)
		require.NoError(t, err)
		assert.Equal(t, "What felt best today?", text)
		assert.False(t, truncated)
	})

	t.Run("reports truncation", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []genai.Part{genai.Text("And then")}},
			FinishReason: genai.FinishReasonMaxTokens,
		}}}

		text, truncated, err := responseText(resp)
		require.NoError(t, err)
		assert.Equal(t, "And then", text)
		assert.True(t, truncated)
	})

	t.Run("empty responses are errors", func(t *testing.T) {
		cases := []*genai.GenerateContentResponse{
			nil,
			{},
			{Candidates: []*genai.Candidate{{}}},
			{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("   ")}}}}},
			{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}}},
		}
		for _, resp := range cases {
			_, _, err := responseText(resp)
			assert.ErrorIs(t, err, ErrEmptyResponse)
		}
	})
}

func TestBuildReformatPrompt(t *testing.T) {
	prompt := buildReformatPrompt([]domain.ChatMessage{
		{Role: domain.RoleAI, Text: "What happened?"},
		{Role: domain.RoleUser, Text: "I went hiking."},
	})

	assert.Contains(t, prompt, "first-person")
	assert.Contains(t, prompt, "Interviewer: What happened?\nMe: I went hiking.\n")
}
