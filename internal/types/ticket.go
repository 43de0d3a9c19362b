package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EffortPoints is a story-point estimate on the 1,2,3,5,8,13 scale.
type EffortPoints int

var validEffort = map[EffortPoints]bool{1: true, 2: true, 3: true, 5: true, 8: true, 13: true}

func (e EffortPoints) Valid() bool { return validEffort[e] }

// UnmarshalJSON accepts both 5 and "5"; models emit either.
func (e *EffortPoints) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*e = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("effortPoints: %q is not a number", s)
	}
	*e = EffortPoints(n)
	return nil
}

type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Ticket is one unit of development work.
type Ticket struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	AcceptanceCriteria []string     `json:"acceptanceCriteria"`
	EffortPoints       EffortPoints `json:"effortPoints"`
	UseCase            string       `json:"useCase"`
	Priority           Priority     `json:"priority"`
	Labels             []string     `json:"labels"`
	Dependencies       []string     `json:"dependencies"`
}

// Validate checks the ticket against the shape every generated or edited
// ticket must satisfy.
func (t Ticket) Validate() error {
	var problems []string
	if strings.TrimSpace(t.ID) == "" {
		problems = append(problems, "id is empty")
	}
	if strings.TrimSpace(t.Title) == "" {
		problems = append(problems, "title is empty")
	}
	if len(t.AcceptanceCriteria) == 0 {
		problems = append(problems, "acceptanceCriteria is empty")
	}
	if !t.EffortPoints.Valid() {
		problems = append(problems, fmt.Sprintf("effortPoints %d not in 1,2,3,5,8,13", t.EffortPoints))
	}
	if !t.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("priority %q not in P1,P2,P3", t.Priority))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("ticket %q: %s", t.ID, strings.Join(problems, "; "))
}

// Normalize replaces nil lists with empty ones.
func (t *Ticket) Normalize() {
	t.AcceptanceCriteria = nonNil(t.AcceptanceCriteria)
	t.Labels = nonNil(t.Labels)
	t.Dependencies = nonNil(t.Dependencies)
}

// ValidateTickets validates every ticket and normalizes its lists in place.
func ValidateTickets(ts []Ticket) error {
	for i := range ts {
		if err := ts[i].Validate(); err != nil {
			return fmt.Errorf("ticket %d: %w", i, err)
		}
		ts[i].Normalize()
	}
	return nil
}

// Justification is the pros/cons/alternatives narrative for a ticket plan.
type Justification struct {
	Pros         []string `json:"pros"`
	Cons         []string `json:"cons"`
	Alternatives []string `json:"alternatives"`
}

func (j *Justification) Normalize() {
	j.Pros = nonNil(j.Pros)
	j.Cons = nonNil(j.Cons)
	j.Alternatives = nonNil(j.Alternatives)
}

func (j Justification) Empty() bool {
	return len(j.Pros) == 0 && len(j.Cons) == 0 && len(j.Alternatives) == 0
}
