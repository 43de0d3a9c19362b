package types

import "time"

// Cost is token usage plus the estimated dollar cost derived from it.
type Cost struct {
	TokensIn  int64   `json:"tokensIn"`
	TokensOut int64   `json:"tokensOut"`
	USD       float64 `json:"usd"`
}

func (c Cost) Add(o Cost) Cost {
	return Cost{
		TokensIn:  c.TokensIn + o.TokensIn,
		TokensOut: c.TokensOut + o.TokensOut,
		USD:       c.USD + o.USD,
	}
}

func (c Cost) IsZero() bool { return c.TokensIn == 0 && c.TokensOut == 0 && c.USD == 0 }

// ValidationIssue is one finding from the ticket validator.
type ValidationIssue struct {
	Type         string `json:"type"`
	TicketID     string `json:"ticketId,omitempty"`
	Description  string `json:"description"`
	SuggestedFix string `json:"suggestedFix"`
}

type ValidationReport struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
}

// PassingReport is what the validator reports when it cannot judge.
func PassingReport() ValidationReport {
	return ValidationReport{Valid: true, Issues: []ValidationIssue{}}
}

// ProjectState is the durable aggregate written to the project store.
type ProjectState struct {
	ID             string            `json:"id"`
	RawText        string            `json:"rawText"`
	Requirements   Requirements      `json:"requirements"`
	Clarifications []string          `json:"clarifications"`
	Answers        map[string]string `json:"answers"`
	Suggestions    []string          `json:"suggestions"`
	Tickets        []Ticket          `json:"tickets"`
	Justification  Justification     `json:"justification"`
	Validation     ValidationReport  `json:"validation"`
	Cost           Cost              `json:"cost"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Normalize fills every nil list and map so the stored document always
// carries the full field set.
func (p *ProjectState) Normalize() {
	p.Requirements.Normalize()
	p.Clarifications = nonNil(p.Clarifications)
	p.Suggestions = nonNil(p.Suggestions)
	if p.Answers == nil {
		p.Answers = map[string]string{}
	}
	if p.Tickets == nil {
		p.Tickets = []Ticket{}
	}
	for i := range p.Tickets {
		p.Tickets[i].Normalize()
	}
	p.Justification.Normalize()
	if p.Validation.Issues == nil {
		p.Validation.Issues = []ValidationIssue{}
	}
}
