package llmclient

import (
	"context"
	"errors"
)

// Request is one completion call. System and User are sent as separate
// turns when the provider supports it.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON-only response when it can enforce one.
	JSON bool
}

// Completion is the model text plus the token usage billed for the call.
type Completion struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// LLMClient defines the interface for LLM providers.
type LLMClient interface {
	Name() string
	Close() error
	Complete(ctx context.Context, req Request) (Completion, error)
}

var ErrEmptyCompletion = errors.New("empty completion from LLM")

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
