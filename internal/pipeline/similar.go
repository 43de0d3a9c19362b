package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	t "ticketforge/internal/types"
)

// ProjectLister is the slice of the project store similarity search reads.
type ProjectLister interface {
	List(ctx context.Context, limit int) ([]t.ProjectState, error)
}

const (
	similarScanLimit  = 5
	similarMaxResults = 2
	similarMinOverlap = 3
	similarMinWordLen = 5
)

// Searcher suggests earlier projects that look like the current one.
type Searcher struct {
	Store ProjectLister
}

// Search never fails the run. On any failure it returns an empty list and
// a *types.BestEffortFailure describing why.
func (s *Searcher) Search(ctx context.Context, summary string) (out []string, err error) {
	out = []string{}
	defer func() {
		if r := recover(); r != nil {
			out, err = []string{}, &t.BestEffortFailure{Step: "similarity", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if s == nil || s.Store == nil {
		return out, nil
	}
	projects, err := s.Store.List(ctx, similarScanLimit)
	if err != nil {
		return []string{}, &t.BestEffortFailure{Step: "similarity", Err: err}
	}

	query := strings.Fields(strings.ToLower(summary))
	for _, p := range projects {
		if len(out) == similarMaxResults {
			break
		}
		candidate := strings.ToLower(p.Requirements.Summary + " " + strings.Join(p.Requirements.Features, " "))
		overlap := 0
		for _, w := range query {
			if utf8.RuneCountInString(w) >= similarMinWordLen && strings.Contains(candidate, w) {
				overlap++
			}
		}
		if overlap >= similarMinOverlap {
			out = append(out, describeSimilar(p))
		}
	}
	return out, nil
}

func describeSimilar(p t.ProjectState) string {
	features := p.Requirements.Features
	if len(features) > 3 {
		features = features[:3]
	}
	return fmt.Sprintf("Similar project \"%s\" had %d tickets covering: %s",
		p.Requirements.ProjectName, len(p.Tickets), strings.Join(features, ", "))
}

// IsBestEffort reports whether err came from a best-effort step.
func IsBestEffort(err error) bool {
	var be *t.BestEffortFailure
	return errors.As(err, &be)
}
