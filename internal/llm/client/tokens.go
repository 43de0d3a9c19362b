package llmclient

import "ticketforge/internal/cost"

// fillUsage estimates token counts for providers that report none.
func fillUsage(c Completion, req Request) Completion {
	if c.TokensIn <= 0 {
		c.TokensIn = cost.EstimateTokens(req.System) + cost.EstimateTokens(req.User)
	}
	if c.TokensOut <= 0 {
		c.TokensOut = cost.EstimateTokens(c.Text)
	}
	return c
}
