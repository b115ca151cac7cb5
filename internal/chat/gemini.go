package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// systemPrompt frames the model as a general health coach that stays on
// topic and defers diagnosis to professionals.
const systemPrompt = `You are a supportive health coach covering nutrition, fitness, ` +
	`mental health and general wellness. Answer the question directly, keep ` +
	`advice general rather than prescriptive, decline non-health topics, and ` +
	`remind the user to consult a healthcare professional for personal medical advice.`

// GeminiResponder implements Responder using Google's Gemini API.
type GeminiResponder struct {
	client  *genai.Client
	modelID string
}

// NewGeminiResponder creates a Gemini-backed responder.
func NewGeminiResponder(ctx context.Context, apiKey, modelID string) (*GeminiResponder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("chat: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("chat: create gemini client: %w", err)
	}
	return &GeminiResponder{client: client, modelID: modelID}, nil
}

// Reply sends the message to Gemini and returns the generated text.
func (g *GeminiResponder) Reply(ctx context.Context, message string) (string, error) {
	model := g.client.GenerativeModel(g.modelID)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	resp, err := model.GenerateContent(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("chat: generate content: %w", err)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("chat: model returned no text")
	}
	return sb.String(), nil
}

// Close releases the underlying API client.
func (g *GeminiResponder) Close() error {
	return g.client.Close()
}
