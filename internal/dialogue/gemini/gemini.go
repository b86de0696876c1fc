package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/user/voice-journal/internal/domain"
)

var ErrEmptyResponse = errors.New("model returned no text")

const continuePrompt = "Please continue."

// Interviewer asks reflective follow-up questions and rewrites finished
// sessions as journal prose.
type Interviewer struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
}

func NewInterviewer(apiKey, model string, maxOutputTokens int) (*Interviewer, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Interviewer{
		client:          client,
		model:           model,
		maxOutputTokens: int32(maxOutputTokens),
	}, nil
}

// NextQuestion sends the conversation so far and returns the model's reply.
func (g *Interviewer) NextQuestion(ctx context.Context, systemPrompt string, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	genModel := g.client.GenerativeModel(g.model)
	if strings.TrimSpace(systemPrompt) != "" {
		genModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	if g.maxOutputTokens > 0 {
		genModel.SetMaxOutputTokens(g.maxOutputTokens)
	}

	history, last := splitHistory(messages)
	chat := genModel.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("failed to generate question: %w", err)
	}

	text, truncated, err := responseText(resp)
	if err != nil {
		return "", err
	}

	log.Info().
		Int("messages", len(messages)).
		Int("question_length", len(text)).
		Bool("truncated", truncated).
		Msg("Generated interviewer question")

	return text, nil
}

// Reformat rewrites a transcript into first-person narrative prose.
func (g *Interviewer) Reformat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to reformat")
	}

	genModel := g.client.GenerativeModel(g.model)
	resp, err := genModel.GenerateContent(ctx, genai.Text(buildReformatPrompt(messages)))
	if err != nil {
		return "", fmt.Errorf("failed to reformat transcript: %w", err)
	}

	text, truncated, err := responseText(resp)
	if err != nil {
		return "", err
	}

	log.Info().
		Int("messages", len(messages)).
		Int("text_length", len(text)).
		Bool("truncated", truncated).
		Msg("Reformatted journal entry")

	return text, nil
}

func (g *Interviewer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// splitHistory maps proxy roles to Gemini roles and separates the message
// to send. A conversation ending on the assistant gets a neutral user turn.
func splitHistory(messages []domain.ChatMessage) ([]*genai.Content, string) {
	last := messages[len(messages)-1]
	rest := messages[:len(messages)-1]
	if last.Role == domain.RoleAI {
		rest = messages
		last = domain.ChatMessage{Role: domain.RoleUser, Text: continuePrompt}
	}

	history := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := "user"
		if msg.Role == domain.RoleAI {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Text)},
		})
	}
	return history, last.Text
}

func responseText(resp *genai.GenerateContentResponse) (string, bool, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false, ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	truncated := candidate.FinishReason == genai.FinishReasonMaxTokens
	if truncated {
		log.Warn().Msg("Gemini response was truncated by the output token limit")
	}

	if candidate.Content == nil {
		return "", truncated, ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", truncated, ErrEmptyResponse
	}
	return out, truncated, nil
}

func buildTranscript(messages []domain.ChatMessage) string {
	var transcript strings.Builder

	for _, msg := range messages {
		speaker := "Me"
		if msg.Role == domain.RoleAI {
			speaker = "Interviewer"
		}
		transcript.WriteString(fmt.Sprintf("%s: %s\n", speaker, msg.Text))
	}

	return transcript.String()
}

func buildReformatPrompt(messages []domain.ChatMessage) string {
	return fmt.Sprintf(`Rewrite the following journaling conversation as a single first-person journal entry.
Write in my voice, in flowing prose paragraphs. Keep every fact, feeling and detail I mentioned and do not invent new ones.
Leave out the interviewer's questions; only use them to understand what my answers refer to.
Return only the journal entry text, without a title or Markdown.

**CONVERSATION:**
%s
**JOURNAL ENTRY:**`, buildTranscript(messages))
}
