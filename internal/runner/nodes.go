package runner

import (
	"context"
	"fmt"
	"strings"

	"ticketforge/internal/artifact"
	"ticketforge/internal/docparse"
	"ticketforge/internal/pipeline"
	t "ticketforge/internal/types"
)

func (w *Workflow) parseNode() Node {
	return Node{Name: "parse", Run: func(_ context.Context, s State) (Delta, error) {
		text, err := docparse.Parse(docparse.Input{
			Text:     s.Input.Text,
			Data:     s.Input.File,
			MIME:     s.Input.MIME,
			FileName: s.Input.FileName,
		})
		if err != nil {
			return Delta{}, err
		}
		return Delta{Text: &text}, nil
	}}
}

func (w *Workflow) securityNode() Node {
	return Node{Name: "security", Run: func(ctx context.Context, s State) (Delta, error) {
		res := w.Filter.Check(s.Text, s.Input.File)
		if !res.Passed {
			return Delta{}, &t.InputError{Reason: res.Reason, TooLarge: true}
		}
		if res.Changed() {
			w.emit(ctx, s, EventStatus, "security", "sanitized: "+strings.Join(res.Findings, ", "), nil)
		}
		findings := res.Findings
		if findings == nil {
			findings = []string{}
		}
		return Delta{Sanitized: &res.SanitizedText, Findings: findings}, nil
	}}
}

func (w *Workflow) extractNode() Node {
	return Node{Name: "extract", Run: func(ctx context.Context, s State) (Delta, error) {
		ex := &pipeline.Extractor{LLM: w.LLM, Pricing: w.Pricing}
		req, c, err := ex.Run(ctx, s.Sanitized)
		if err != nil {
			return Delta{Cost: c}, err
		}
		return Delta{Requirements: &req, Cost: c}, nil
	}}
}

func (w *Workflow) clarifyNode() Node {
	return Node{Name: "clarify", Run: func(_ context.Context, s State) (Delta, error) {
		return Delta{Clarifications: pipeline.Clarify(s.Requirements)}, nil
	}}
}

func (w *Workflow) similarityNode() Node {
	return Node{Name: "similarity", BestEffort: true, Run: func(ctx context.Context, s State) (Delta, error) {
		if s.Requirements.Summary == "" || w.Store == nil {
			return Delta{}, nil
		}
		found, err := (&pipeline.Searcher{Store: w.Store}).Search(ctx, s.Requirements.Summary)
		return Delta{Suggestions: found}, err
	}}
}

func (w *Workflow) generateNode() Node {
	return Node{Name: "generate", Run: func(ctx context.Context, s State) (Delta, error) {
		g := &pipeline.Generator{
			LLM:         w.LLM,
			Pricing:     w.Pricing,
			BatchSize:   w.BatchSize,
			Concurrency: w.Concurrency,
			OnBatch: func(b pipeline.BatchResult) {
				w.emit(ctx, s, EventProgress, "generate",
					fmt.Sprintf("batch %d of %d: %d tickets", b.Batch, b.Total, b.Tickets),
					Progress{Batch: b.Batch, Batches: b.Total, Tickets: b.Tickets})
			},
		}
		gen, err := g.Run(ctx, s.Requirements, s.Answers)
		if err != nil {
			return Delta{Cost: gen.Cost}, err
		}
		for _, r := range gen.Renamed {
			w.log().Warn("run %s: duplicate ticket id %s in batch %d renamed to %s", s.RunID, r.From, r.Batch, r.To)
		}
		return Delta{Tickets: gen.Tickets, Justification: &gen.Justification, Cost: gen.Cost}, nil
	}}
}

func (w *Workflow) validateNode() Node {
	return Node{Name: "validate", BestEffort: true, Run: func(ctx context.Context, s State) (Delta, error) {
		if len(s.Tickets) == 0 {
			return Delta{}, nil
		}
		v := &pipeline.Validator{LLM: w.LLM, Pricing: w.Pricing}
		report, c, err := v.Run(ctx, s.Tickets, s.Requirements)
		return Delta{Validation: &report, Cost: c}, err
	}}
}

func (w *Workflow) persistNode() Node {
	return Node{Name: "persist", Run: func(ctx context.Context, s State) (Delta, error) {
		now := w.now()
		created := s.CreatedAt
		if created.IsZero() {
			created = now
			if prev, err := w.Store.Get(ctx, s.ProjectID); err == nil && !prev.CreatedAt.IsZero() {
				created = prev.CreatedAt
			}
		}
		p := t.ProjectState{
			ID:             s.ProjectID,
			RawText:        s.Sanitized,
			Requirements:   s.Requirements,
			Clarifications: s.Clarifications,
			Answers:        s.Answers,
			Suggestions:    s.Suggestions,
			Tickets:        s.Tickets,
			Justification:  s.Justification,
			Validation:     s.Validation,
			Cost:           s.Cost,
			CreatedAt:      created,
			UpdatedAt:      now,
		}
		p.Normalize()
		if err := w.Store.Put(ctx, p); err != nil {
			return Delta{}, fmt.Errorf("persist %s: %w", p.ID, err)
		}
		return Delta{Project: &p, CreatedAt: &created}, nil
	}}
}

func (w *Workflow) archiveNode() Node {
	return Node{Name: "archive", BestEffort: true, Run: func(ctx context.Context, s State) (Delta, error) {
		if s.Err != nil || s.Project == nil || w.Artifacts == nil {
			return Delta{}, nil
		}
		if err := artifact.ArchiveSource(ctx, w.Artifacts, s.ProjectID, s.Sanitized); err != nil {
			return Delta{}, &t.BestEffortFailure{Step: "archive", Err: err}
		}
		return Delta{}, nil
	}}
}
