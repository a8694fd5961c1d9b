// Package llm provides the text-generation capability used by the dialogue
// engine. Generation is modeled as a single fallible operation so callers
// can treat failures as a first-class case rather than an exception path.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Generator produces text for a prompt under the given sampling parameters.
// Implementations may fail or return empty output; callers must handle both.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Config holds generation backend configuration.
type Config struct {
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// OpenAIGenerator implements Generator on top of langchaingo's OpenAI client.
// Any OpenAI-compatible endpoint works via BaseURL.
type OpenAIGenerator struct {
	model  llms.Model
	logger *zap.Logger
}

// NewOpenAIGenerator creates a generator from config.
func NewOpenAIGenerator(cfg Config, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	return &OpenAIGenerator{model: model, logger: logger}, nil
}

// Generate runs a single completion. Empty completions are reported as
// errors so the caller's fallback path engages.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	if err != nil {
		g.logger.Warn("generation call failed", zap.Error(err))
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
