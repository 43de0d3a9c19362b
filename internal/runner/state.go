package runner

import (
	"time"

	t "ticketforge/internal/types"
)

// Input starts a run. Either Text or File is set.
type Input struct {
	Text      string
	File      []byte
	FileName  string
	MIME      string
	ProjectID string
	Answers   map[string]string
}

// State is the single value threaded through the nodes of a run. Nodes never
// mutate it; they return a Delta that Merge folds in.
type State struct {
	RunID     string
	ProjectID string
	Input     Input

	Text           string
	Sanitized      string
	Findings       []string
	Requirements   t.Requirements
	Clarifications []string
	Answers        map[string]string
	Suggestions    []string
	Tickets        []t.Ticket
	Justification  t.Justification
	Validation     t.ValidationReport
	Cost           t.Cost
	CreatedAt      time.Time
	Project        *t.ProjectState

	// Err is the first required-node failure.
	Err error
}

// Delta is a node's contribution. Nil pointers, slices and maps leave the
// state untouched.
type Delta struct {
	Text           *string
	Sanitized      *string
	Findings       []string
	Requirements   *t.Requirements
	Clarifications []string
	Answers        map[string]string
	Suggestions    []string
	Tickets        []t.Ticket
	Justification  *t.Justification
	Validation     *t.ValidationReport
	Cost           t.Cost
	CreatedAt      *time.Time
	Project        *t.ProjectState
	Err            error
}

// Merge folds d into s: provided fields replace, cost adds, and the first
// error wins.
func Merge(s State, d Delta) State {
	if d.Text != nil {
		s.Text = *d.Text
	}
	if d.Sanitized != nil {
		s.Sanitized = *d.Sanitized
	}
	if d.Findings != nil {
		s.Findings = d.Findings
	}
	if d.Requirements != nil {
		s.Requirements = *d.Requirements
	}
	if d.Clarifications != nil {
		s.Clarifications = d.Clarifications
	}
	if d.Answers != nil {
		s.Answers = d.Answers
	}
	if d.Suggestions != nil {
		s.Suggestions = d.Suggestions
	}
	if d.Tickets != nil {
		s.Tickets = d.Tickets
	}
	if d.Justification != nil {
		s.Justification = *d.Justification
	}
	if d.Validation != nil {
		s.Validation = *d.Validation
	}
	if d.CreatedAt != nil {
		s.CreatedAt = *d.CreatedAt
	}
	if d.Project != nil {
		s.Project = d.Project
	}
	s.Cost = s.Cost.Add(d.Cost)
	if s.Err == nil && d.Err != nil {
		s.Err = d.Err
	}
	return s
}

func ptr[T any](v T) *T { return &v }
