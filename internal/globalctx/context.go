package globalctx

import (
	"context"
	"strings"
)

type ctxKeyGlobalContext struct{}

// GlobalContext carries run-scoped identifiers down to the LLM layer so
// logging, hooks and the fake client know which run and step a call serves.
type GlobalContext struct {
	RunID     string
	ProjectID string
	Step      string
}

func WithGlobalContext(ctx context.Context, gc GlobalContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	gc.RunID = strings.TrimSpace(gc.RunID)
	gc.ProjectID = strings.TrimSpace(gc.ProjectID)
	gc.Step = strings.ToLower(strings.TrimSpace(gc.Step))
	return context.WithValue(ctx, ctxKeyGlobalContext{}, gc)
}

func GlobalContextFrom(ctx context.Context) GlobalContext {
	if ctx != nil {
		if v := ctx.Value(ctxKeyGlobalContext{}); v != nil {
			if gc, ok := v.(GlobalContext); ok {
				return gc
			}
		}
	}
	return GlobalContext{}
}

// WithStep returns ctx tagged with the pipeline step, keeping other fields.
func WithStep(ctx context.Context, step string) context.Context {
	gc := GlobalContextFrom(ctx)
	gc.Step = step
	return WithGlobalContext(ctx, gc)
}

// StepFrom returns the current step or "unknown".
func StepFrom(ctx context.Context) string {
	if s := GlobalContextFrom(ctx).Step; s != "" {
		return s
	}
	return "unknown"
}
