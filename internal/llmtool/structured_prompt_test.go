package llmtool

import (
	"strings"
	"testing"
)

func TestStructuredPrompt_RendersSections(t *testing.T) {
	spec := StructuredPromptSpec{
		Purpose:      "Extract requirements from a project brief.",
		Background:   "Briefs are written by non-engineers.",
		OutputFormat: "JSON only.",
		Language:     "English",
		OutputFields: []PromptField{
			{Name: "projectName", Type: "string", Required: true, Description: "Short name."},
			{Name: "scope", Type: "string", Required: false},
		},
		Constraints: []string{"No markdown."},
		Rules:       []string{"Be concise."},
		Assumptions: []string{"If unsure, return empty lists."},
		Examples: []PromptExample{
			{InputJSON: `{"text":"x"}`, OutputJSON: `{"projectName":"ok"}`},
		},
	}

	out, err := spec.Render(map[string]any{"text": "demo"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}

	wantSections := []string{
		"[PURPOSE]",
		"[BACKGROUND]",
		"[INPUT]",
		"[OUTPUT]",
		"[CONSTRAINTS]",
		"[RULES]",
		"[ASSUMPTIONS]",
		"[OUTPUT_FORMAT]",
		"[LANGUAGE]",
		"[EXAMPLES]",
	}
	for _, sec := range wantSections {
		if !strings.Contains(out, sec) {
			t.Fatalf("expected section %s in prompt", sec)
		}
	}
	if !strings.Contains(out, "- projectName (string, required): Short name.") {
		t.Fatalf("expected required field line, got:\n%s", out)
	}
	if !strings.Contains(out, "- scope (string, optional)") {
		t.Fatalf("expected optional field line, got:\n%s", out)
	}
}

func TestStructuredPrompt_OmitsInputWhenNil(t *testing.T) {
	spec := StructuredPromptSpec{
		Purpose:      "p",
		OutputFields: []PromptField{{Name: "a", Type: "string", Required: true}},
	}
	out := spec.MustRender()
	if strings.Contains(out, "[INPUT]") {
		t.Fatalf("input section should be omitted:\n%s", out)
	}
}

func TestStructuredPrompt_RejectsEmptyPurpose(t *testing.T) {
	if _, err := (StructuredPromptSpec{}).Render(nil); err == nil {
		t.Fatalf("expected error for empty purpose")
	}
}
