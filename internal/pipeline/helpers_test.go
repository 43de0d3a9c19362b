package pipeline

import (
	"encoding/json"
	"fmt"

	"ticketforge/internal/types"
)

func ticket(id string, deps ...string) types.Ticket {
	if deps == nil {
		deps = []string{}
	}
	return types.Ticket{
		ID:                 id,
		Title:              "Work " + id,
		Description:        "Do " + id,
		AcceptanceCriteria: []string{id + " done"},
		EffortPoints:       3,
		UseCase:            "core",
		Priority:           types.PriorityP2,
		Labels:             []string{"backend"},
		Dependencies:       deps,
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func batchJSON(withJustification bool, ts ...types.Ticket) string {
	out := map[string]any{"tickets": ts}
	if withJustification {
		out["justification"] = types.Justification{
			Pros:         []string{"small tickets"},
			Cons:         []string{"many tickets"},
			Alternatives: []string{"milestones"},
		}
	}
	return mustJSON(out)
}

func features(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Feature %d", i+1)
	}
	return out
}

func fenced(s string) string {
	return "Here you go:\n```json\n" + s + "\n```\n"
}
