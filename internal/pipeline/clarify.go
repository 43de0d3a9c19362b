package pipeline

import (
	"strings"

	t "ticketforge/internal/types"
)

// MaxClarifications caps the questions asked per run.
const MaxClarifications = 3

const (
	QuestionBudget   = "What is the project budget or cost constraint? (e.g. $X/month for hosting, $Y total budget)"
	QuestionTimeline = "What is the target deadline or timeline? (e.g. launch in 6 weeks, MVP in 3 months)"
	QuestionScale    = "What user scale or traffic do you expect? (e.g. 100 users, 10K daily active users, 1M visits/month)"
	QuestionTeam     = "What is the team composition and experience level? (e.g. 2 full-stack developers, 1 designer, junior team)"
)

func mentions(items []string, words ...string) bool {
	for _, it := range items {
		low := strings.ToLower(it)
		for _, w := range words {
			if strings.Contains(low, w) {
				return true
			}
		}
	}
	return false
}

// Clarify returns up to three questions for planning signals the
// requirements lack, ordered budget, timeline, scale, team.
func Clarify(req t.Requirements) []string {
	hasBudget := mentions(req.Constraints, "budget", "cost", "$")
	hasTimeline := mentions(req.Constraints, "deadline", "timeline", "week", "month")
	hasTeam := mentions(req.Constraints, "team", "developer", "resource") ||
		mentions(req.Stakeholders, "team", "developer")
	hasScale := mentions(req.Constraints, "user", "traffic", "scale", "concurrent") ||
		mentions([]string{req.Scope}, "user", "scale")

	var qs []string
	for _, c := range []struct {
		ok bool
		q  string
	}{
		{hasBudget, QuestionBudget},
		{hasTimeline, QuestionTimeline},
		{hasScale, QuestionScale},
		{hasTeam, QuestionTeam},
	} {
		if !c.ok {
			qs = append(qs, c.q)
		}
		if len(qs) == MaxClarifications {
			break
		}
	}
	if qs == nil {
		return []string{}
	}
	return qs
}
