package pipeline

import (
	"context"
	"fmt"
	"strings"

	"ticketforge/internal/cost"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/llmtool"
	t "ticketforge/internal/types"
	"ticketforge/internal/util/jsonutil"
)

var promptValidate = llmtool.StructuredPromptSpec{
	Purpose:    "Review a ticket plan against the project requirements.",
	Background: "The tickets were generated in batches and may miss features, repeat work or reference unknown dependencies.",
	OutputFields: []llmtool.PromptField{
		{Name: "valid", Type: "bool", Required: true, Description: "false when any issue would block delivery."},
		{Name: "issues", Type: "[]Issue", Required: true, Description: "Empty when the plan is sound."},
		{Name: "issues[].type", Type: "string", Required: true, Description: "coverage, duplicate, dependency, estimate or consistency."},
		{Name: "issues[].ticketId", Type: "string|null", Required: false, Description: "The ticket concerned, null for plan-wide issues."},
		{Name: "issues[].description", Type: "string", Required: true, Description: "What is wrong."},
		{Name: "issues[].suggestedFix", Type: "string", Required: true, Description: "A concrete change that resolves it."},
	},
	Rules: []string{
		"Every feature must be covered by at least one ticket.",
		"Dependencies must name existing ticket ids and must not form cycles.",
		"Flag tickets whose estimate is out of proportion to their description.",
	},
	OutputFormat: `{"valid": true, "issues": []}`,
	Language:     "English",
}

// Validator asks the model to review a ticket plan.
type Validator struct {
	LLM     llmclient.LLMClient
	Pricing cost.Pricing
}

type validateOutput struct {
	Valid  bool `json:"valid"`
	Issues []struct {
		Type         string  `json:"type"`
		TicketID     *string `json:"ticketId"`
		Description  string  `json:"description"`
		SuggestedFix string  `json:"suggestedFix"`
	} `json:"issues"`
}

// Run returns the validator's report. When the call or its output fails it
// returns a passing report together with a *types.BestEffortFailure, so a
// caller can tell "no issues" from "could not check".
func (v *Validator) Run(ctx context.Context, tickets []t.Ticket, req t.Requirements) (t.ValidationReport, t.Cost, error) {
	if v == nil || v.LLM == nil || len(tickets) == 0 {
		return t.PassingReport(), t.Cost{}, nil
	}
	body, err := jsonutil.MarshalIndentNoEscape(tickets)
	if err != nil {
		return t.PassingReport(), t.Cost{}, &t.BestEffortFailure{Step: "validate", Err: err}
	}
	var b strings.Builder
	b.WriteString("Validate these tickets against the requirements:\n\n")
	fmt.Fprintf(&b, "Requirements:\n- Project: %s\n- Features: %s\n- Goals: %s\n- Constraints: %s\n\n",
		req.ProjectName,
		strings.Join(req.Features, ", "),
		strings.Join(req.Goals, ", "),
		strings.Join(req.Constraints, ", "))
	b.WriteString("Tickets:\n")
	b.Write(body)

	resp, c, err := complete(ctx, v.LLM, v.Pricing, "validate", llmclient.Request{
		System:      promptValidate.MustRender(),
		User:        b.String(),
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return t.PassingReport(), t.Cost{}, &t.BestEffortFailure{Step: "validate", Err: err}
	}
	var out validateOutput
	if err := llmtool.Decode(resp.Text, &out, "valid"); err != nil {
		return t.PassingReport(), c, &t.BestEffortFailure{Step: "validate", Err: err}
	}
	report := t.ValidationReport{Valid: out.Valid, Issues: []t.ValidationIssue{}}
	for _, is := range out.Issues {
		issue := t.ValidationIssue{
			Type:         strings.TrimSpace(is.Type),
			Description:  strings.TrimSpace(is.Description),
			SuggestedFix: strings.TrimSpace(is.SuggestedFix),
		}
		if is.TicketID != nil {
			issue.TicketID = *is.TicketID
		}
		report.Issues = append(report.Issues, issue)
	}
	return report, c, nil
}
