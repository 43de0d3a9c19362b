package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"ticketforge/internal/globalctx"
	"ticketforge/internal/runner"
	"ticketforge/internal/types"
)

type ClarifyRequest struct {
	ProjectID string            `json:"projectId" minLength:"1"`
	Answers   map[string]string `json:"answers" doc:"Answers keyed by clarification question"`
}

type EditRequest struct {
	ProjectID   string `json:"projectId" minLength:"1"`
	Instruction string `json:"instruction" doc:"Natural-language change to apply to the tickets"`
}

type projectPath struct {
	ProjectID string `path:"projectId"`
}

func (h *Handler) registerProjects(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "clarify",
		Method:      http.MethodPost,
		Path:        "/api/clarify",
		Summary:     "Answer clarification questions and regenerate tickets",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body ClarifyRequest
	}) (*struct {
		Body types.ProjectState
	}, error) {
		ctx, em := h.syncRun(ctx, input.Body.ProjectID)
		p, err := h.cfg.Pipeline.Clarify(ctx, input.Body.ProjectID, input.Body.Answers, em)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body types.ProjectState
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit",
		Method:      http.MethodPost,
		Path:        "/api/edit",
		Summary:     "Edit a project's tickets with a natural-language instruction",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body EditRequest
	}) (*struct {
		Body runner.EditOutcome
	}, error) {
		ctx, em := h.syncRun(ctx, input.Body.ProjectID)
		out, err := h.cfg.Pipeline.Edit(ctx, input.Body.ProjectID, input.Body.Instruction, em)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body runner.EditOutcome
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/api/projects/{projectId}",
		Summary:     "Stored project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body types.ProjectState
	}, error) {
		p, err := h.cfg.Projects.Get(ctx, strings.TrimSpace(input.ProjectID))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body types.ProjectState
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project-cost",
		Method:      http.MethodGet,
		Path:        "/api/projects/{projectId}/cost",
		Summary:     "Accumulated token usage and cost of a project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body types.Cost
	}, error) {
		p, err := h.cfg.Projects.Get(ctx, strings.TrimSpace(input.ProjectID))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body types.Cost
		}{Body: p.Cost}, nil
	})
}

// syncRun registers a request-scoped run so clarify and edit progress is
// observable like a generation run.
func (h *Handler) syncRun(ctx context.Context, projectID string) (context.Context, runner.Emitter) {
	runID := h.cfg.NewRunID()
	r := h.cfg.Runs.Create(runID)
	ctx = globalctx.WithGlobalContext(ctx, globalctx.GlobalContext{RunID: runID, ProjectID: projectID})
	return ctx, h.emitter(r)
}
