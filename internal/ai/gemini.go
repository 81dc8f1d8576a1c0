// internal/ai/gemini.go
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"curator/internal/models"
)

// GeminiAdapter implements Adapter over Google's Gemini API.
type GeminiAdapter struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiAdapter creates the adapter. An empty API key is an error so
// callers wire the fallback instead of a half-configured client.
func NewGeminiAdapter(apiKey, model string, timeout time.Duration) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiAdapter{client: client, model: model, timeout: timeout}, nil
}

func (a *GeminiAdapter) generateJSON(ctx context.Context, prompt string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := a.client.Models.GenerateContent(ctx,
		a.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		log.Printf("[ai][gemini][err] generate: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return []byte(text), nil
}

func (a *GeminiAdapter) GenerateCuration(ctx context.Context, prompt string) (*CurationResult, error) {
	raw, err := a.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	res, err := ParseCurationResult(raw)
	if err != nil {
		log.Printf("[ai][gemini][err] %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, nil
}

func (a *GeminiAdapter) GenerateBreakdown(ctx context.Context, prompt string) (*BreakdownResult, error) {
	raw, err := a.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	res, err := ParseBreakdownResult(raw)
	if err != nil {
		log.Printf("[ai][gemini][err] %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, nil
}

func (a *GeminiAdapter) ClassifySize(ctx context.Context, title, description string) (models.TaskSize, error) {
	prompt := "Classify the effort of this task as exactly one of: xs, s, m, l, xl.\n" +
		"Return ONLY a JSON object of the form {\"size\":\"m\"}.\n" +
		"title: " + title + "\n"
	if description != "" {
		prompt += "description: " + description + "\n"
	}

	raw, err := a.generateJSON(ctx, prompt)
	if err != nil {
		return "", err
	}
	var out struct {
		Size string `json:"size"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	label := models.TaskSize(strings.ToLower(strings.TrimSpace(out.Size)))
	if !models.IsAllowedSize(label) {
		return "", fmt.Errorf("%w: bad size label %q", ErrUnavailable, label)
	}
	return label, nil
}
