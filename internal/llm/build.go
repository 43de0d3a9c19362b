package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/logger"
)

// Config selects a provider and the middleware applied around it.
type Config struct {
	Provider    string // gemini | ollama | fake
	Model       string
	APIKey      string
	RPS         float64
	Burst       int
	MaxAttempts int
	RetryDelay  time.Duration
	UsageLedger string
	Logger      *logger.Logger
	Hooks       []Hook
}

// New builds the provider client and wraps it as
// logging -> hooks -> retry -> rate limit -> usage ledger -> provider.
func New(ctx context.Context, cfg Config) (llmclient.LLMClient, error) {
	var (
		inner llmclient.LLMClient
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini", "":
		inner, err = llmclient.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case "ollama":
		inner, err = llmclient.NewOllamaClient(cfg.Model)
	case "fake":
		inner = llmclient.NewFakeClient()
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: init %s: %w", cfg.Provider, err)
	}
	return Wrap(inner,
		WithLogging(cfg.Logger),
		WithHooks(cfg.Hooks...),
		Retry(cfg.MaxAttempts, cfg.RetryDelay),
		RateLimit(cfg.RPS, cfg.Burst),
		WithUsageLedger(cfg.UsageLedger),
	), nil
}
