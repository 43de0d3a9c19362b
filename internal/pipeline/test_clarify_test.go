package pipeline

import (
	"testing"

	"ticketforge/internal/tester"
	"ticketforge/internal/types"
)

func TestClarify_AllMissingCapsAtThree(t *testing.T) {
	got := Clarify(types.Requirements{})
	tester.Eq(t, got, []string{QuestionBudget, QuestionTimeline, QuestionScale})
}

func TestClarify_SignalsSuppressQuestions(t *testing.T) {
	req := types.Requirements{
		Constraints:  []string{"Budget of $2k", "Launch in 6 weeks"},
		Stakeholders: []string{"Two developers"},
	}
	tester.Eq(t, Clarify(req), []string{QuestionScale})

	req.Scope = "about 500 users"
	tester.Eq(t, Clarify(req), []string{})
}

func TestClarify_CaseInsensitive(t *testing.T) {
	req := types.Requirements{Constraints: []string{"BUDGET fixed", "DEADLINE in March", "10K CONCURRENT", "TEAM of 3"}}
	tester.Eq(t, len(Clarify(req)), 0)
}
