package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a project id has no stored document.
var ErrNotFound = errors.New("project not found")

// InputError rejects a document before any model call is made.
type InputError struct {
	Reason   string
	TooLarge bool
}

func (e *InputError) Error() string { return "invalid input: " + e.Reason }

// ParseError reports model output that is not JSON or does not match the
// expected shape. Batch is 1-based and zero outside batched generation.
type ParseError struct {
	Step  string
	Batch int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Batch > 0 {
		return fmt.Sprintf("%s batch %d: unparseable model output: %v", e.Step, e.Batch, e.Err)
	}
	return fmt.Sprintf("%s: unparseable model output: %v", e.Step, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UserMessage is the text shown to a person who issued the failing request.
func (e *ParseError) UserMessage() string {
	switch e.Step {
	case "edit":
		return "The edit could not be applied because the model returned malformed tickets. Try a simpler instruction, for example one change at a time."
	case "generate":
		return "Ticket generation returned malformed output. Please retry."
	default:
		return "The document could not be analysed. Please retry."
	}
}

// ValidationError rejects extracted requirements that do not describe a
// software project.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("the document does not describe a software project:")
	for _, r := range e.Reasons {
		b.WriteString("\n- ")
		b.WriteString(r)
	}
	return b.String()
}

// BestEffortFailure is returned alongside a neutral result by steps whose
// failure must not stop the run.
type BestEffortFailure struct {
	Step string
	Err  error
}

func (e *BestEffortFailure) Error() string {
	return fmt.Sprintf("%s (best-effort): %v", e.Step, e.Err)
}

func (e *BestEffortFailure) Unwrap() error { return e.Err }
