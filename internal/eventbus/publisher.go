package eventbus

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"ticketforge/internal/logger"
	"ticketforge/internal/runner"
	"ticketforge/internal/util/jsonutil"
)

const DefaultPrefix = "ticketforge"

// Publisher is a runner.Emitter that publishes each event as JSON to
// <prefix>.runs.<runID>.<kind>.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{nc: nc, prefix: prefix}
}

// Subject returns the subject an event of kind for runID is published on.
func (p *Publisher) Subject(runID string, kind runner.EventKind) string {
	return fmt.Sprintf("%s.runs.%s.%s", p.prefix, runID, kind)
}

// RunSubjects is the wildcard matching every event of runID.
func (p *Publisher) RunSubjects(runID string) string {
	return fmt.Sprintf("%s.runs.%s.>", p.prefix, runID)
}

// Emit never blocks on the network; failures are logged and dropped.
func (p *Publisher) Emit(e runner.Event) {
	if p == nil || p.nc == nil || e.RunID == "" {
		return
	}
	b, err := jsonutil.MarshalNoEscape(e)
	if err != nil {
		logger.Warn("eventbus: encode %s event for run %s: %v", e.Kind, e.RunID, err)
		return
	}
	if err := p.nc.Publish(p.Subject(e.RunID, e.Kind), b); err != nil {
		logger.Warn("eventbus: publish %s event for run %s: %v", e.Kind, e.RunID, err)
	}
}
