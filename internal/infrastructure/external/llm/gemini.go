// Package llm implements domain/service.LLMClient against the Gemini API for
// the classify stage.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	domainerrors "github.com/harvestlab/repoharvester/internal/domain/errors"
	"github.com/harvestlab/repoharvester/internal/domain/service"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.3
	callTimeout        = 120 * time.Second
)

// Client implements service.LLMClient.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      service.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithLogger(logger service.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new Gemini-backed classify client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}

	c := &Client{
		client:      genaiClient,
		model:       DefaultModel,
		temperature: defaultTemperature,
		logger:      noopLogger{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Generate runs one completion call against the classify prompt, bounded by
// a 120s deadline.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("generating classification", "model", c.model)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	contents := genai.Text(prompt)
	config := &genai.GenerateContentConfig{Temperature: &c.temperature}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == 429 {
			return "", &domainerrors.RateLimitError{StatusCode: 429, ResetAt: time.Now().Add(time.Minute)}
		}
		return "", fmt.Errorf("llm: generate content: %w", err)
	}

	return extractText(result)
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llm: no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text, nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)        {}
func (noopLogger) Info(string, ...any)         {}
func (noopLogger) Warn(string, ...any)         {}
func (noopLogger) Error(string, ...any)        {}
func (n noopLogger) With(...any) service.Logger { return n }

var _ service.LLMClient = (*Client)(nil)
