// Package llm wraps the hosted completion APIs behind a single Completer interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fileqa/internal/config"
	"fileqa/internal/metrics"
)

var (
	ErrMissingAPIKey   = errors.New("API key is required")
	ErrEmptyCompletion = errors.New("empty completion")
)

// Request is a single-turn completion request
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Completer turns a prompt into text
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// New builds a Completer for provider. baseURL overrides the API endpoint when non-empty.
func New(provider, apiKey, model, baseURL string, logger *slog.Logger) (Completer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s: %w", config.ProviderLabel(provider), ErrMissingAPIKey)
	}
	if model == "" {
		model = config.DefaultModel(provider)
	}

	var c Completer
	switch provider {
	case config.ProviderAnthropic:
		c = NewAnthropic(apiKey, model, baseURL)
	case config.ProviderOpenAI:
		c = NewOpenAI(apiKey, model, baseURL)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	return &instrumented{next: c, logger: logger}, nil
}

// instrumented records metrics and logs for every completion
type instrumented struct {
	next   Completer
	logger *slog.Logger
}

func (i *instrumented) Name() string {
	return i.next.Name()
}

func (i *instrumented) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := i.next.Complete(ctx, req)
	elapsed := time.Since(start)

	metrics.LLMDuration.WithLabelValues(i.next.Name()).Observe(elapsed.Seconds())
	metrics.LLMRequests.WithLabelValues(i.next.Name(), metrics.Status(err)).Inc()

	if i.logger != nil {
		if err != nil {
			i.logger.Error("LLM completion failed", "error", err, "provider", i.next.Name(), "duration_ms", elapsed.Milliseconds())
		} else {
			i.logger.Info("LLM completion", "provider", i.next.Name(), "duration_ms", elapsed.Milliseconds(), "response_length", len(text))
		}
	}
	return text, err
}
