package llm

import (
	"context"
	"time"

	"ticketforge/internal/globalctx"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/logger"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns
// (rate limiting, retries, logging, hooks, etc.).
type Middleware func(llmclient.LLMClient) llmclient.LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.LLMClient, mws ...Middleware) llmclient.LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// passthrough forwards Name and Close so each middleware only implements Complete.
type passthrough struct{ next llmclient.LLMClient }

func (p passthrough) Name() string { return p.next.Name() }
func (p passthrough) Close() error { return p.next.Close() }

// -------- Rate Limiting --------

// RateLimit limits request rate using rpsLimiter.
// If rps <= 0, the limiter is effectively disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &rateLimited{passthrough{next}, newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	passthrough
	rl *rpsLimiter
}

func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}

func (c *rateLimited) Complete(ctx context.Context, req llmclient.Request) (llmclient.Completion, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return llmclient.Completion{}, err
	}
	return c.next.Complete(ctx, req)
}

// -------- Retry with exponential backoff --------

// Retry retries Complete up to maxAttempts with exponential backoff
// starting at baseDelay. Permanent errors and context cancellation stop it
// immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &retrying{passthrough: passthrough{next}, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	passthrough
	max  int
	base time.Duration
}

func (r *retrying) Complete(ctx context.Context, req llmclient.Request) (llmclient.Completion, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := r.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if llmclient.IsPermanent(err) {
			return llmclient.Completion{}, err
		}
		last = err
		if i == r.max-1 {
			break
		}
		t := time.NewTimer(r.base * time.Duration(1<<i))
		select {
		case <-ctx.Done():
			t.Stop()
			return llmclient.Completion{}, ctx.Err()
		case <-t.C:
		}
	}
	return llmclient.Completion{}, last
}

// -------- Logging & Hooks --------

// WithLogging logs step, model, latency and token usage of every call.
// A nil logger uses logger.Default.
func WithLogging(l *logger.Logger) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &logging{passthrough: passthrough{next}, log: l}
	}
}

type logging struct {
	passthrough
	log *logger.Logger
}

func (l *logging) Complete(ctx context.Context, req llmclient.Request) (llmclient.Completion, error) {
	lg := l.log
	if lg == nil {
		lg = logger.Default
	}
	gc := globalctx.GlobalContextFrom(ctx)
	step := globalctx.StepFrom(ctx)
	lg.Debug("LLM request (%s/%s) run=%s: %d bytes", step, l.next.Name(), gc.RunID, len(req.System)+len(req.User))
	start := time.Now()
	resp, err := l.next.Complete(ctx, req)
	if err != nil {
		lg.Warn("LLM error (%s/%s) run=%s after %s: %v", step, l.next.Name(), gc.RunID, time.Since(start).Round(time.Millisecond), err)
		return resp, err
	}
	lg.Info("LLM response (%s/%s) run=%s in %s: in=%d out=%d", step, l.next.Name(), gc.RunID, time.Since(start).Round(time.Millisecond), resp.TokensIn, resp.TokensOut)
	return resp, nil
}

// Hook observes calls. Before runs before the request is sent; After sees
// the result, including errors.
type Hook interface {
	Before(ctx context.Context, step string, req llmclient.Request)
	After(ctx context.Context, step string, resp llmclient.Completion, err error)
}

// WithHooks calls every hook around Complete.
func WithHooks(hooks ...Hook) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &hooked{passthrough: passthrough{next}, hooks: hooks}
	}
}

type hooked struct {
	passthrough
	hooks []Hook
}

func (h *hooked) Complete(ctx context.Context, req llmclient.Request) (llmclient.Completion, error) {
	step := globalctx.StepFrom(ctx)
	for _, hk := range h.hooks {
		hk.Before(ctx, step, req)
	}
	resp, err := h.next.Complete(ctx, req)
	for _, hk := range h.hooks {
		hk.After(ctx, step, resp, err)
	}
	return resp, err
}
