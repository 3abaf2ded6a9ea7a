package extract

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Completer is a single-turn text-completion backend.
type Completer interface {
	// Complete sends one user message under a system instruction and
	// returns the model's text reply.
	Complete(ctx context.Context, system, user string) (string, error)
}

// GeminiCompleter implements Completer with the Gemini API.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a Gemini-backed completer. It does not make
// a request; use Ping to verify the key.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete asks the model for a JSON reply.
func (g *GeminiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.2),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty reply")
	}
	return text, nil
}

// Ping sends a trivial prompt to confirm the key and model are usable.
func (g *GeminiCompleter) Ping(ctx context.Context) error {
	_, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text("Hello"), nil)
	if err != nil {
		return fmt.Errorf("gemini ping: %w", err)
	}
	return nil
}
