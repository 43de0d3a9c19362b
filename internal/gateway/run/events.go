package run

import (
	"strings"
	"sync"
	"time"

	"ticketforge/internal/runner"
	"ticketforge/internal/types"
)

// DefaultRetention is how long a finished run stays queryable.
const DefaultRetention = 10 * time.Minute

const subscriberBuffer = 64

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Snapshot is the externally visible state of a run.
type Snapshot struct {
	RunID   string              `json:"runId"`
	Status  Status              `json:"status"`
	Events  []runner.Event      `json:"events"`
	Project *types.ProjectState `json:"project,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Run buffers every event of one pipeline run and fans them out to live
// subscribers. It is a runner.Emitter.
type Run struct {
	id string

	mu      sync.Mutex
	status  Status
	events  []runner.Event
	project *types.ProjectState
	errMsg  string
	subs    map[int]chan runner.Event
	nextSub int
	onDone  func()
}

func newRun(id string) *Run {
	return &Run{id: id, status: StatusRunning, events: []runner.Event{}, subs: map[int]chan runner.Event{}}
}

func (r *Run) ID() string { return r.id }

// Emit records e. A terminal event settles the run and closes subscribers.
// A subscriber that falls behind by more than its buffer loses events.
func (r *Run) Emit(e runner.Event) {
	r.mu.Lock()
	if r.status != StatusRunning {
		r.mu.Unlock()
		return
	}
	if e.RunID == "" {
		e.RunID = r.id
	}
	r.events = append(r.events, e)
	for _, ch := range r.subs {
		select {
		case ch <- e:
		default:
		}
	}
	var done func()
	if e.Terminal() {
		if e.Kind == runner.EventComplete {
			r.status = StatusCompleted
			if p, ok := e.Payload.(types.ProjectState); ok {
				r.project = &p
			}
		} else {
			r.status = StatusFailed
			r.errMsg = e.Message
		}
		for id, ch := range r.subs {
			close(ch)
			delete(r.subs, id)
		}
		done = r.onDone
	}
	r.mu.Unlock()
	if done != nil {
		done()
	}
}

// Snapshot copies the current state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]runner.Event, len(r.events))
	copy(events, r.events)
	return Snapshot{RunID: r.id, Status: r.status, Events: events, Project: r.project, Error: r.errMsg}
}

// Subscribe returns the events so far and a channel of the ones that follow.
// The channel is closed after the terminal event, or at once when the run
// has already finished. cancel releases the subscription.
func (r *Run) Subscribe() (replay []runner.Event, live <-chan runner.Event, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replay = make([]runner.Event, len(r.events))
	copy(replay, r.events)
	ch := make(chan runner.Event, subscriberBuffer)
	if r.status != StatusRunning {
		close(ch)
		return replay, ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	return replay, ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			close(c)
			delete(r.subs, id)
		}
	}
}

// Registry tracks runs by id and forgets finished ones after Retention.
type Registry struct {
	Retention time.Duration

	mu   sync.RWMutex
	runs map[string]*Run
}

func NewRegistry() *Registry {
	return &Registry{Retention: DefaultRetention, runs: map[string]*Run{}}
}

// Create registers a new run under id, replacing any previous one.
func (g *Registry) Create(id string) *Run {
	id = strings.TrimSpace(id)
	r := newRun(id)
	r.onDone = func() { g.scheduleCleanup(r) }
	g.mu.Lock()
	g.runs[id] = r
	g.mu.Unlock()
	return r
}

func (g *Registry) Get(id string) (*Run, bool) {
	g.mu.RLock()
	r, ok := g.runs[strings.TrimSpace(id)]
	g.mu.RUnlock()
	return r, ok
}

func (g *Registry) scheduleCleanup(r *Run) {
	retention := g.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	time.AfterFunc(retention, func() {
		g.mu.Lock()
		if g.runs[r.id] == r {
			delete(g.runs, r.id)
		}
		g.mu.Unlock()
	})
}
