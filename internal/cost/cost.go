package cost

import (
	"math"
	"strings"
	"sync"

	"ticketforge/internal/types"
)

// Pricing is a per-1K-token price pair in USD.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost prices one call.
func (p Pricing) Cost(tokensIn, tokensOut int) types.Cost {
	return types.Cost{
		TokensIn:  int64(tokensIn),
		TokensOut: int64(tokensOut),
		USD:       float64(tokensIn)/1000*p.InputPer1K + float64(tokensOut)/1000*p.OutputPer1K,
	}
}

var table = map[string]Pricing{
	"gpt-4":            {InputPer1K: 0.03, OutputPer1K: 0.06},
	"gpt-4-turbo":      {InputPer1K: 0.01, OutputPer1K: 0.03},
	"gpt-3.5-turbo":    {InputPer1K: 0.0005, OutputPer1K: 0.0015},
	"gemini-2.5-flash": {InputPer1K: 0.0003, OutputPer1K: 0.0025},
	"gemini-2.5-pro":   {InputPer1K: 0.00125, OutputPer1K: 0.01},
}

// Default applies to models missing from the table.
var Default = Pricing{InputPer1K: 0.01, OutputPer1K: 0.03}

// PriceFor returns the pricing of the longest known prefix of model.
func PriceFor(model string) Pricing {
	model = strings.ToLower(strings.TrimSpace(model))
	if p, ok := table[model]; ok {
		return p
	}
	best, bestLen := Default, 0
	for name, p := range table {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = p, len(name)
		}
	}
	return best
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(s string) int {
	return int(math.Ceil(float64(len(s)) / 4))
}

// Tracker accumulates the cost of one run. Create one per run; it is safe
// for concurrent use by parallel batches.
type Tracker struct {
	mu      sync.Mutex
	pricing Pricing
	total   types.Cost
}

func NewTracker(p Pricing) *Tracker {
	return &Tracker{pricing: p}
}

// Track records one call and returns its cost.
func (t *Tracker) Track(tokensIn, tokensOut int) types.Cost {
	c := t.pricing.Cost(tokensIn, tokensOut)
	t.Add(c)
	return c
}

func (t *Tracker) Add(c types.Cost) {
	t.mu.Lock()
	t.total = t.total.Add(c)
	t.mu.Unlock()
}

func (t *Tracker) Total() types.Cost {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
