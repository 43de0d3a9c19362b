package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ticketforge/internal/cost"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/llmtool"
	t "ticketforge/internal/types"
	"ticketforge/internal/utils"
)

const DefaultBatchSize = 3

var promptGenerate = llmtool.StructuredPromptSpec{
	Purpose:    "Break a software project into development tickets a small team can pick up.",
	Background: "You receive the project requirements, clarification answers and one batch of the feature list. Other batches are generated separately.",
	OutputFields: []llmtool.PromptField{
		{Name: "tickets", Type: "[]Ticket", Required: true, Description: "Tickets for the features of this batch."},
		{Name: "tickets[].id", Type: "string", Required: true, Description: "TICKET-<batch><nn>, both parts two digits, e.g. TICKET-0101."},
		{Name: "tickets[].title", Type: "string", Required: true, Description: "Imperative, under 80 characters."},
		{Name: "tickets[].description", Type: "string", Required: true, Description: "What to build and why, two to five sentences."},
		{Name: "tickets[].acceptanceCriteria", Type: "[]string", Required: true, Description: "Testable statements, at least one."},
		{Name: "tickets[].effortPoints", Type: "int", Required: true, Description: "One of 1, 2, 3, 5, 8, 13."},
		{Name: "tickets[].useCase", Type: "string", Required: true, Description: "The feature or user story this ticket serves."},
		{Name: "tickets[].priority", Type: "string", Required: true, Description: "P1, P2 or P3."},
		{Name: "tickets[].labels", Type: "[]string", Required: true, Description: "e.g. frontend, backend, infra, testing."},
		{Name: "tickets[].dependencies", Type: "[]string", Required: true, Description: "Ids of tickets that must be done first."},
		{Name: "justification", Type: "object", Required: false, Description: "{pros, cons, alternatives} for the overall plan; only when asked."},
	},
	Rules: []string{
		"Split large work; nothing above 13 points.",
		"Every ticket needs at least one acceptance criterion.",
		"Dependencies may only name ids you produced in this batch or earlier batches.",
	},
	OutputFormat: `{"tickets": [...], "justification": {...}}`,
	Language:     "English",
}

// BatchResult is reported after each generation batch completes.
type BatchResult struct {
	Batch   int
	Total   int
	Tickets int
}

// IDRename records a duplicate ticket id that was given a suffix.
type IDRename struct {
	Batch int    `json:"batch"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Generation is the combined output of every batch.
type Generation struct {
	Tickets       []t.Ticket
	Justification t.Justification
	Cost          t.Cost
	Batches       int
	Renamed       []IDRename
}

// Generator produces tickets from requirements in feature batches. OnBatch
// is called from worker goroutines when Concurrency > 1.
type Generator struct {
	LLM         llmclient.LLMClient
	Pricing     cost.Pricing
	BatchSize   int
	Concurrency int
	OnBatch     func(BatchResult)
}

type batchOutput struct {
	Tickets       []t.Ticket       `json:"tickets"`
	Justification *t.Justification `json:"justification"`
}

type batchSlot struct {
	out  batchOutput
	cost t.Cost
}

func splitFeatures(features []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for i := 0; i < len(features); i += size {
		end := min(i+size, len(features))
		out = append(out, features[i:end])
	}
	return out
}

// Run generates tickets for every feature. Any batch failure aborts the
// whole generation; no partial ticket list is returned.
func (g *Generator) Run(ctx context.Context, req t.Requirements, answers map[string]string) (Generation, error) {
	if len(req.Features) == 0 {
		return Generation{}, &t.ValidationError{Reasons: []string{"no software features were identified"}}
	}
	batches := splitFeatures(req.Features, g.BatchSize)
	total := len(batches)
	slots := make([]batchSlot, total)

	run := func(ctx context.Context, i int) error {
		n := i + 1
		resp, c, err := complete(ctx, g.LLM, g.Pricing, "generate", llmclient.Request{
			System:      promptGenerate.MustRender(),
			User:        batchPrompt(req, answers, batches[i], n, total),
			Temperature: 0.3,
			MaxTokens:   4096,
			JSON:        true,
		})
		if err != nil {
			return fmt.Errorf("generate batch %d: %w", n, err)
		}
		var out batchOutput
		if err := llmtool.Decode(resp.Text, &out, "tickets"); err != nil {
			return &t.ParseError{Step: "generate", Batch: n, Err: err}
		}
		if len(out.Tickets) == 0 {
			return &t.ParseError{Step: "generate", Batch: n, Err: fmt.Errorf("no tickets returned")}
		}
		if err := t.ValidateTickets(out.Tickets); err != nil {
			return &t.ParseError{Step: "generate", Batch: n, Err: err}
		}
		slots[i] = batchSlot{out: out, cost: c}
		if g.OnBatch != nil {
			g.OnBatch(BatchResult{Batch: n, Total: total, Tickets: len(out.Tickets)})
		}
		return nil
	}

	if g.Concurrency > 1 && total > 1 {
		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(g.Concurrency)
		for i := range batches {
			eg.Go(func() error { return run(egctx, i) })
		}
		if err := eg.Wait(); err != nil {
			return Generation{}, err
		}
	} else {
		for i := range batches {
			if err := run(ctx, i); err != nil {
				return Generation{}, err
			}
		}
	}
	return assemble(slots), nil
}

// assemble concatenates batches in order, renaming ids already taken by an
// earlier ticket. Dependencies inside the same batch follow the rename.
func assemble(slots []batchSlot) Generation {
	gen := Generation{Tickets: []t.Ticket{}, Batches: len(slots)}
	ids := utils.NewIDAllocator()
	for i, s := range slots {
		gen.Cost = gen.Cost.Add(s.cost)
		if s.out.Justification != nil && gen.Justification.Empty() {
			gen.Justification = *s.out.Justification
		}
		local := map[string]string{}
		start := len(gen.Tickets)
		for _, tk := range s.out.Tickets {
			id := ids.Reserve(tk.ID)
			if _, seen := local[tk.ID]; !seen {
				local[tk.ID] = id
			}
			if id != tk.ID {
				gen.Renamed = append(gen.Renamed, IDRename{Batch: i + 1, From: tk.ID, To: id})
				tk.ID = id
			}
			gen.Tickets = append(gen.Tickets, tk)
		}
		for j := start; j < len(gen.Tickets); j++ {
			deps := gen.Tickets[j].Dependencies
			for k, d := range deps {
				if to, ok := local[d]; ok && to != gen.Tickets[j].ID {
					deps[k] = to
				}
			}
		}
	}
	gen.Justification.Normalize()
	return gen
}

func batchPrompt(req t.Requirements, answers map[string]string, features []string, n, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate development tickets for BATCH %d of %d.\n\n", n, total)
	fmt.Fprintf(&b, "PROJECT: %s\nSUMMARY: %s\n\n", req.ProjectName, req.Summary)
	b.WriteString("GOALS:\n")
	b.WriteString(bullets(req.Goals))
	b.WriteString("\nCONSTRAINTS:\n")
	b.WriteString(bullets(req.Constraints))
	if len(req.TechHints) > 0 {
		b.WriteString("\nTECH HINTS:\n")
		b.WriteString(bullets(req.TechHints))
	}
	if len(answers) > 0 {
		b.WriteString("\nCLARIFICATIONS:\n")
		keys := make([]string, 0, len(answers))
		for k := range answers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", k, answers[k])
		}
	}
	b.WriteString("\nFEATURES IN THIS BATCH:\n")
	for _, f := range features {
		fmt.Fprintf(&b, "- Feature: %s\n", f)
	}

	b.WriteString("\nCRITICAL INSTRUCTIONS FOR THIS BATCH:\n")
	fmt.Fprintf(&b, "- Produce at least %d tickets, aiming for about %d.\n", max(3*len(features), 5), 6*len(features))
	fmt.Fprintf(&b, "- Number ids TICKET-%02d01, TICKET-%02d02 and so on.\n", n, n)
	if n == 1 {
		b.WriteString("- Include project setup and infrastructure tickets (repository, CI, environments, database) before feature work.\n")
		b.WriteString("- Also return \"justification\" with pros, cons and alternatives for the overall plan.\n")
	} else {
		b.WriteString("- Do not repeat setup or infrastructure tickets; earlier batches cover them.\n")
		b.WriteString("- Do not return a justification.\n")
	}
	b.WriteString("- Cover every feature listed above.\n")
	return b.String()
}
