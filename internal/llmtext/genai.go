package llmtext

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// GeminiCompleter adapts google.golang.org/genai to the TextCompleter
// interface. It retries transport failures up to twice with exponential
// backoff, per spec.md §7's recommended (not required for correctness)
// retry policy for LlmTransportError.
type GeminiCompleter struct {
	Client    *genai.Client
	ModelName string
	Retries   int
	Backoff   time.Duration
}

// NewGeminiCompleter builds a completer against the Gemini API using the
// given credential. An empty modelName defaults to "gemini-2.0-flash".
func NewGeminiCompleter(ctx context.Context, apiKey, modelName string) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create genai client: %v", models.ErrLlmTransportError, err)
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	return &GeminiCompleter{
		Client:    client,
		ModelName: modelName,
		Retries:   2,
		Backoff:   500 * time.Millisecond,
	}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	var lastErr error
	backoff := c.Backoff
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", models.ErrLlmTransportError, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := c.Client.Models.GenerateContent(ctx, c.ModelName, contents, nil)
		if err != nil {
			lastErr = err
			continue
		}

		text := resp.Text()
		if text == "" {
			lastErr = fmt.Errorf("empty response from model")
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("%w: %v", models.ErrLlmTransportError, lastErr)
}
