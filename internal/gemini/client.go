// Package gemini wraps the Gemini API behind a small text/JSON generation
// gateway with API key rotation and retry.
package gemini

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// Generator produces model output for a prompt. The step number seeds key
// rotation so consecutive pipeline stages start on different keys.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, step int) (string, error)
	GenerateJSON(ctx context.Context, prompt string, step int) (string, error)
}

// Usage accumulates token accounting across a pipeline run.
type Usage struct {
	mu           sync.Mutex
	Requests     int
	InputTokens  int
	OutputTokens int
}

func (u *Usage) add(requests, in, out int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Requests += requests
	u.InputTokens += in
	u.OutputTokens += out
}

// Snapshot returns the current counters.
func (u *Usage) Snapshot() (requests, inputTokens, outputTokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Requests, u.InputTokens, u.OutputTokens
}

// Gateway calls Gemini with per-attempt key rotation and linear backoff.
type Gateway struct {
	keys        []string
	model       string
	temperature float32
	maxAttempts int
	backoffUnit time.Duration
	usage       *Usage
	invoke      func(ctx context.Context, key, prompt, mimeType string) (string, int, int, error)
}

const minAttempts = 3

// NewGateway creates a gateway over one or more API keys. Every key gets one
// attempt; small pools still get a few retries for transient failures.
func NewGateway(keys []string, model string, temperature float32, usage *Usage) (*Gateway, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no gemini api keys configured")
	}
	if usage == nil {
		usage = &Usage{}
	}
	attempts := len(keys)
	if attempts < minAttempts {
		attempts = minAttempts
	}
	g := &Gateway{
		keys:        keys,
		model:       model,
		temperature: temperature,
		maxAttempts: attempts,
		backoffUnit: time.Second,
		usage:       usage,
	}
	g.invoke = g.call
	return g, nil
}

// Usage returns the shared usage counters.
func (g *Gateway) Usage() *Usage { return g.usage }

// GenerateText calls the model and returns plain text output.
func (g *Gateway) GenerateText(ctx context.Context, prompt string, step int) (string, error) {
	return g.generate(ctx, prompt, step, "")
}

// GenerateJSON calls the model in JSON mode and returns the raw response
// text, which still may need fence stripping before parsing.
func (g *Gateway) GenerateJSON(ctx context.Context, prompt string, step int) (string, error) {
	return g.generate(ctx, prompt, step, "application/json")
}

func (g *Gateway) generate(ctx context.Context, prompt string, step int, mimeType string) (string, error) {
	attempt := 0
	var out string

	// Each attempt waits one backoff unit longer than the previous one.
	backoff := retry.WithMaxRetries(uint64(g.maxAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		return time.Duration(attempt) * g.backoffUnit, false
	}))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		key := g.keys[(step+attempt)%len(g.keys)]
		attempt++

		text, in, outTok, err := g.invoke(ctx, key, prompt, mimeType)
		if err != nil {
			log.Warn().Err(err).Int("step", step).Int("attempt", attempt).Msg("gemini call failed")
			return retry.RetryableError(err)
		}
		g.usage.add(1, in, outTok)
		out = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed after %d attempts across %d keys: %w", g.maxAttempts, len(g.keys), err)
	}
	return out, nil
}

func (g *Gateway) call(ctx context.Context, key, prompt, mimeType string) (string, int, int, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("create gemini client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](g.temperature),
	}
	if mimeType != "" {
		cfg.ResponseMIMEType = mimeType
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", 0, 0, fmt.Errorf("generate content: %w", err)
	}

	var in, out int
	if resp.UsageMetadata != nil {
		in = int(resp.UsageMetadata.PromptTokenCount)
		out = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	text := resp.Text()
	if text == "" {
		return "", in, out, fmt.Errorf("empty model response")
	}
	return text, in, out, nil
}
