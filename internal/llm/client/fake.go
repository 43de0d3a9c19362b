package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ticketforge/internal/globalctx"
)

// FakeClient returns deterministic, minimal JSON payloads per step for
// offline runs and demos. It reads only the prompt markers the pipeline
// writes, so its output is stable for a given input.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

var (
	fakeBatchRe   = regexp.MustCompile(`BATCH (\d+) of (\d+)`)
	fakeFeatureRe = regexp.MustCompile(`(?m)^- Feature: (.+)$`)
	fakeBulletRe  = regexp.MustCompile(`(?m)^\s*[-*]\s+(.+)$`)
)

func (f *FakeClient) Complete(ctx context.Context, req Request) (Completion, error) {
	var obj any
	switch step := globalctx.StepFrom(ctx); step {
	case "extract":
		obj = fakeRequirements(req.User)
	case "generate":
		obj = fakeBatch(req.User)
	case "validate":
		obj = map[string]any{"valid": true, "issues": []any{}}
	case "edit":
		obj = map[string]any{"toRemove": []string{}, "toAddOrUpdate": []any{}}
	default:
		return Completion{}, NewPermanentError(fmt.Errorf("fake llm: no canned output for step %q", step))
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return Completion{}, err
	}
	return fillUsage(Completion{Text: string(b)}, req), nil
}

func fakeRequirements(doc string) map[string]any {
	// Drop the instruction line the extractor puts before the document.
	if i := strings.Index(doc, "\n\n"); i >= 0 && strings.HasSuffix(strings.TrimSpace(doc[:i]), ":") {
		doc = doc[i+2:]
	}
	doc = strings.TrimSpace(doc)
	name := "Demo Project"
	if i := strings.IndexByte(doc, '\n'); i > 0 {
		name = strings.TrimSpace(strings.TrimLeft(doc[:i], "# "))
	}
	var features []string
	for _, m := range fakeBulletRe.FindAllStringSubmatch(doc, 6) {
		features = append(features, strings.TrimSpace(m[1]))
	}
	if len(features) == 0 {
		features = []string{"Core web application"}
	}
	summary := doc
	if len(summary) > 240 {
		summary = summary[:240]
	}
	return map[string]any{
		"projectName":  name,
		"summary":      summary,
		"goals":        []string{"Deliver the software described in the brief"},
		"constraints":  []string{},
		"features":     features,
		"stakeholders": []string{"End users"},
	}
}

func fakeBatch(prompt string) map[string]any {
	batch := 1
	if m := fakeBatchRe.FindStringSubmatch(prompt); m != nil {
		batch, _ = strconv.Atoi(m[1])
	}
	features := fakeFeatureRe.FindAllStringSubmatch(prompt, -1)
	if len(features) == 0 {
		features = [][]string{{"", "Feature"}}
	}
	var tickets []map[string]any
	n := 0
	for _, m := range features {
		feature := strings.TrimSpace(m[1])
		for _, part := range []string{"Design", "Implement", "Test"} {
			n++
			tickets = append(tickets, map[string]any{
				"id":                 fmt.Sprintf("TICKET-%02d%02d", batch, n),
				"title":              part + " " + feature,
				"description":        part + " work for " + feature + ".",
				"acceptanceCriteria": []string{part + " for " + feature + " is reviewed and merged"},
				"effortPoints":       3,
				"useCase":            feature,
				"priority":           "P2",
				"labels":             []string{strings.ToLower(part)},
				"dependencies":       []string{},
			})
		}
	}
	out := map[string]any{"tickets": tickets}
	if batch == 1 {
		out["justification"] = map[string]any{
			"pros":         []string{"Each feature is split into design, build and test work"},
			"cons":         []string{"Estimates are placeholders"},
			"alternatives": []string{"Plan by milestone instead of by feature"},
		}
	}
	return out
}
