package runner

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticketforge/internal/artifact"
	"ticketforge/internal/cost"
	"ticketforge/internal/globalctx"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/logger"
	"ticketforge/internal/pipeline"
	"ticketforge/internal/security"
	t "ticketforge/internal/types"
)

// ProjectRepo is the part of the project store a workflow uses.
type ProjectRepo interface {
	Get(ctx context.Context, id string) (t.ProjectState, error)
	Put(ctx context.Context, p t.ProjectState) error
	List(ctx context.Context, limit int) ([]t.ProjectState, error)
}

// Workflow runs the document-to-tickets pipeline and its re-entry flows.
type Workflow struct {
	LLM         llmclient.LLMClient
	Pricing     cost.Pricing
	Store       ProjectRepo
	Artifacts   artifact.Store
	Filter      security.Filter
	BatchSize   int
	Concurrency int
	Logger      *logger.Logger

	Now   func() time.Time
	NewID func() string
}

func (w *Workflow) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC().Round(0)
	}
	return time.Now().UTC().Round(0)
}

func (w *Workflow) newID() string {
	if w.NewID != nil {
		return w.NewID()
	}
	return uuid.NewString()
}

func (w *Workflow) log() *logger.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return logger.Default
}

// start prepares the context and initial state shared by every entry point.
func (w *Workflow) start(ctx context.Context, projectID string, em Emitter) (context.Context, State) {
	gc := globalctx.GlobalContextFrom(ctx)
	runID := gc.RunID
	if runID == "" {
		runID = w.newID()
	}
	if em != nil {
		ctx = WithEmitter(ctx, em)
	}
	ctx = globalctx.WithGlobalContext(ctx, globalctx.GlobalContext{RunID: runID, ProjectID: projectID})
	return ctx, State{RunID: runID, ProjectID: projectID, Validation: t.PassingReport()}
}

// finish reports the outcome of a run as its terminal event.
func (w *Workflow) finish(ctx context.Context, s State) (t.ProjectState, error) {
	if s.Err != nil {
		w.emit(ctx, s, EventError, "", s.Err.Error(), nil)
		return t.ProjectState{}, s.Err
	}
	p := *s.Project
	w.log().Info("run %s: project %s saved with %d tickets (tokens in=%d out=%d usd=%.4f)",
		s.RunID, p.ID, len(p.Tickets), p.Cost.TokensIn, p.Cost.TokensOut, p.Cost.USD)
	w.emit(ctx, s, EventComplete, "", "project "+p.ID+" ready", p)
	return p, nil
}

// Run processes a new document. When in.ProjectID names an existing project
// it is overwritten but keeps its creation time.
func (w *Workflow) Run(ctx context.Context, in Input, em Emitter) (t.ProjectState, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		projectID = w.newID()
	}
	ctx, s := w.start(ctx, projectID, em)
	s.Input = in
	s.Answers = map[string]string{}
	maps.Copy(s.Answers, in.Answers)

	tracker := cost.NewTracker(w.Pricing)
	s = w.execute(ctx, []Node{
		w.parseNode(),
		w.securityNode(),
		w.extractNode(),
		w.clarifyNode(),
		w.similarityNode(),
		w.generateNode(),
		w.validateNode(),
		w.persistNode(),
		w.archiveNode(),
	}, s, tracker)
	return w.finish(ctx, s)
}

// load seeds a state from a stored project for the re-entry flows.
func (w *Workflow) load(ctx context.Context, s State) (State, error) {
	prev, err := w.Store.Get(ctx, s.ProjectID)
	if err != nil {
		return s, err
	}
	s.Text = prev.RawText
	s.Sanitized = prev.RawText
	s.Requirements = prev.Requirements
	s.Clarifications = prev.Clarifications
	s.Answers = map[string]string{}
	maps.Copy(s.Answers, prev.Answers)
	s.Suggestions = prev.Suggestions
	s.Tickets = prev.Tickets
	s.Justification = prev.Justification
	s.Validation = prev.Validation
	s.Cost = prev.Cost
	s.CreatedAt = prev.CreatedAt
	return s, nil
}

// Clarify merges answers into a stored project and regenerates its tickets.
// New answers win over old ones for the same question.
func (w *Workflow) Clarify(ctx context.Context, projectID string, answers map[string]string, em Emitter) (t.ProjectState, error) {
	ctx, s := w.start(ctx, strings.TrimSpace(projectID), em)
	s, err := w.load(ctx, s)
	if err != nil {
		s.Err = err
		return w.finish(ctx, s)
	}
	maps.Copy(s.Answers, answers)

	tracker := cost.NewTracker(w.Pricing)
	s = w.execute(ctx, []Node{
		w.generateNode(),
		w.validateNode(),
		w.persistNode(),
	}, s, tracker)
	return w.finish(ctx, s)
}

// EditOutcome is a saved project plus what the edit changed.
type EditOutcome struct {
	Project t.ProjectState          `json:"project"`
	Changes []pipeline.TicketChange `json:"changes"`
}

// Edit applies a natural-language instruction to a stored project's tickets.
// When the model output cannot be used nothing is written.
func (w *Workflow) Edit(ctx context.Context, projectID, instruction string, em Emitter) (EditOutcome, error) {
	ctx, s := w.start(ctx, strings.TrimSpace(projectID), em)
	s, err := w.load(ctx, s)
	if err != nil {
		s.Err = err
		_, err = w.finish(ctx, s)
		return EditOutcome{}, err
	}

	var changes []pipeline.TicketChange
	edit := Node{Name: "edit", Run: func(ctx context.Context, s State) (Delta, error) {
		ed := &pipeline.Editor{LLM: w.LLM, Pricing: w.Pricing}
		res, c, err := ed.Run(ctx, s.Tickets, instruction)
		if err != nil {
			return Delta{Cost: c}, err
		}
		changes = res.Changes
		return Delta{Tickets: res.Tickets, Cost: c}, nil
	}}

	tracker := cost.NewTracker(w.Pricing)
	s = w.execute(ctx, []Node{edit, w.persistNode()}, s, tracker)
	p, err := w.finish(ctx, s)
	if err != nil {
		return EditOutcome{}, err
	}
	return EditOutcome{Project: p, Changes: changes}, nil
}
