package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// Gemini scores headlines with a Gemini model
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini API client for apiKey
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func prompt(symbol string, headlines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a swing trading expert. Analyze these headlines for %s and rate the sentiment.\n\nHeadlines:\n", symbol)
	for _, h := range headlines {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	b.WriteString(`
Answer with exactly these three lines:
Score: <number from -1.0 (very bearish) to 1.0 (very bullish)>
Sentiment: <BULLISH, BEARISH or NEUTRAL>
Reason: <one concise sentence>
`)
	return b.String()
}

func (g *Gemini) Score(ctx context.Context, symbol string, headlines []string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt(symbol, headlines)), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: no response for %s", symbol)
	}
	return resp.Text(), nil
}
