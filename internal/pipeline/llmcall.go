package pipeline

import (
	"context"

	"ticketforge/internal/cost"
	"ticketforge/internal/globalctx"
	llmclient "ticketforge/internal/llm/client"
	t "ticketforge/internal/types"
)

// complete tags ctx with step, runs one model call and prices its usage.
func complete(ctx context.Context, cli llmclient.LLMClient, p cost.Pricing, step string, req llmclient.Request) (llmclient.Completion, t.Cost, error) {
	resp, err := cli.Complete(globalctx.WithStep(ctx, step), req)
	if err != nil {
		return llmclient.Completion{}, t.Cost{}, err
	}
	return resp, p.Cost(resp.TokensIn, resp.TokensOut), nil
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "- (none)\n"
	}
	out := ""
	for _, it := range items {
		out += "- " + it + "\n"
	}
	return out
}
