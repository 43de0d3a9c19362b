package types

import "strings"

// Requirements is the structured project description extracted from a brief.
type Requirements struct {
	ProjectName  string   `json:"projectName"`
	Summary      string   `json:"summary"`
	Goals        []string `json:"goals"`
	Constraints  []string `json:"constraints"`
	Features     []string `json:"features"`
	Stakeholders []string `json:"stakeholders"`
	TechHints    []string `json:"techHints,omitempty"`
	Scope        string   `json:"scope,omitempty"`
}

// RequirementsKeys are the keys a model response must carry to decode as Requirements.
var RequirementsKeys = []string{"projectName", "summary", "goals", "constraints", "features", "stakeholders"}

// Normalize replaces nil lists with empty ones so the persisted document has
// every field present.
func (r *Requirements) Normalize() {
	r.Goals = nonNil(r.Goals)
	r.Constraints = nonNil(r.Constraints)
	r.Features = nonNil(r.Features)
	r.Stakeholders = nonNil(r.Stakeholders)
}

// Text joins the descriptive fields into one lowercase blob for keyword checks.
func (r Requirements) Text() string {
	parts := []string{r.ProjectName, r.Summary}
	parts = append(parts, r.Goals...)
	parts = append(parts, r.Features...)
	parts = append(parts, r.Stakeholders...)
	return strings.ToLower(strings.Join(parts, " "))
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
