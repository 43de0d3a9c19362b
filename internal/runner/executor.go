package runner

import (
	"context"

	"ticketforge/internal/cost"
	"ticketforge/internal/globalctx"
	t "ticketforge/internal/types"
)

// Node is one step of a workflow. A best-effort node always runs and its
// error never reaches State.Err; a required node is skipped once an earlier
// required node failed.
type Node struct {
	Name       string
	BestEffort bool
	Run        func(ctx context.Context, s State) (Delta, error)
}

// Progress is the payload of progress events.
type Progress struct {
	Percent int    `json:"percent"`
	Cost    t.Cost `json:"cost"`
	Batch   int    `json:"batch,omitempty"`
	Batches int    `json:"batches,omitempty"`
	Tickets int    `json:"tickets,omitempty"`
}

func (w *Workflow) execute(ctx context.Context, nodes []Node, s State, tracker *cost.Tracker) State {
	for i, n := range nodes {
		if !n.BestEffort && s.Err != nil {
			continue
		}
		if !n.BestEffort {
			if err := ctx.Err(); err != nil {
				s = Merge(s, Delta{Err: err})
				continue
			}
		}
		w.emit(ctx, s, EventStatus, n.Name, "running "+n.Name, nil)
		stepCtx := globalctx.WithGlobalContext(ctx, globalctx.GlobalContext{
			RunID:     s.RunID,
			ProjectID: s.ProjectID,
			Step:      n.Name,
		})
		d, err := n.Run(stepCtx, s)
		if err != nil {
			if n.BestEffort {
				w.log().Warn("run %s: %s failed, continuing: %v", s.RunID, n.Name, err)
				w.emit(ctx, s, EventStatus, n.Name, n.Name+" skipped: "+err.Error(), nil)
				d.Err = nil
			} else {
				w.log().Error("run %s: %s failed: %v", s.RunID, n.Name, err)
				d.Err = err
			}
		}
		tracker.Add(d.Cost)
		s = Merge(s, d)
		if d.Err == nil {
			w.emit(ctx, s, EventProgress, n.Name, n.Name+" done", Progress{
				Percent: (i + 1) * 100 / len(nodes),
				Cost:    tracker.Total(),
			})
		}
	}
	return s
}

func (w *Workflow) emit(ctx context.Context, s State, kind EventKind, step, msg string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			w.log().Warn("run %s: event sink panicked on %s: %v", s.RunID, kind, r)
		}
	}()
	EmitterFrom(ctx).Emit(Event{
		RunID:   s.RunID,
		Kind:    kind,
		Step:    step,
		Message: msg,
		Payload: payload,
		Time:    w.now(),
	})
}
