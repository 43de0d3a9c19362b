package llmclient

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned when a ScriptedClient has no response left.
var ErrScriptExhausted = errors.New("scripted llm: no response queued")

// ScriptedClient replays canned responses in order, or delegates to Handler
// when set. Every request is recorded. Tests across the module use it as
// the model stub.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	calls     []Request

	Handler func(ctx context.Context, req Request) (Completion, error)
}

func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

func (s *ScriptedClient) Name() string { return "scripted" }
func (s *ScriptedClient) Close() error { return nil }

// Push queues more responses.
func (s *ScriptedClient) Push(responses ...string) {
	s.mu.Lock()
	s.responses = append(s.responses, responses...)
	s.mu.Unlock()
}

func (s *ScriptedClient) Complete(ctx context.Context, req Request) (Completion, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	h := s.Handler
	var (
		text string
		ok   bool
	)
	if h == nil && len(s.responses) > 0 {
		text, s.responses, ok = s.responses[0], s.responses[1:], true
	}
	s.mu.Unlock()

	if h != nil {
		c, err := h(ctx, req)
		if err != nil {
			return Completion{}, err
		}
		return fillUsage(c, req), nil
	}
	if !ok {
		return Completion{}, ErrScriptExhausted
	}
	return fillUsage(Completion{Text: text}, req), nil
}

// Calls returns a copy of every request seen so far.
func (s *ScriptedClient) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}
