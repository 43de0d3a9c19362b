package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ticketforge/internal/gateway/run"
	"ticketforge/internal/globalctx"
	"ticketforge/internal/runner"
)

// GenerateRequest starts a run from pasted text or an uploaded file.
type GenerateRequest struct {
	Text      string            `json:"text,omitempty" doc:"Document text; takes precedence over fileData"`
	FileName  string            `json:"fileName,omitempty" example:"brief.pdf"`
	FileData  []byte            `json:"fileData,omitempty" doc:"Base64 encoded document bytes"`
	MimeType  string            `json:"mimeType,omitempty" example:"application/pdf"`
	ProjectID string            `json:"projectId,omitempty" doc:"Overwrite this project instead of creating one"`
	Answers   map[string]string `json:"answers,omitempty" doc:"Answers to clarification questions, keyed by question"`
}

type RunAccepted struct {
	RunID string `json:"runId"`
}

func (h *Handler) registerRuns(api huma.API) {
	// base64 inflates uploads by a third.
	maxBody := h.cfg.MaxUploadBytes*4/3 + 64<<10

	huma.Register(api, huma.Operation{
		OperationID:   "generate",
		Method:        http.MethodPost,
		Path:          "/api/generate",
		Summary:       "Start generating tickets from a document",
		DefaultStatus: http.StatusAccepted,
		MaxBodyBytes:  maxBody,
		Errors:        []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge},
	}, func(ctx context.Context, input *struct {
		Body GenerateRequest
	}) (*struct {
		Location string `header:"Location"`
		Body     RunAccepted
	}, error) {
		in := runner.Input{
			Text:      input.Body.Text,
			File:      input.Body.FileData,
			FileName:  strings.TrimSpace(input.Body.FileName),
			MIME:      strings.TrimSpace(input.Body.MimeType),
			ProjectID: strings.TrimSpace(input.Body.ProjectID),
			Answers:   input.Body.Answers,
		}
		if strings.TrimSpace(in.Text) == "" && len(in.File) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text or fileData is required", nil)
		}
		if int64(len(in.Text)) > h.cfg.MaxUploadBytes || int64(len(in.File)) > h.cfg.MaxUploadBytes {
			return nil, newAPIError(http.StatusRequestEntityTooLarge, "too_large", "document exceeds the upload limit", nil)
		}
		runID := h.start(in)
		return &struct {
			Location string `header:"Location"`
			Body     RunAccepted
		}{Location: "/api/runs/" + runID, Body: RunAccepted{RunID: runID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/api/runs/{runId}",
		Summary:     "Run status, buffered events and outcome",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RunID string `path:"runId"`
	}) (*struct {
		Body run.Snapshot
	}, error) {
		r, ok := h.cfg.Runs.Get(input.RunID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "run not found", nil)
		}
		return &struct {
			Body run.Snapshot
		}{Body: r.Snapshot()}, nil
	})
}

// start launches a generation run in the background and returns its id.
func (h *Handler) start(in runner.Input) string {
	runID := h.cfg.NewRunID()
	r := h.cfg.Runs.Create(runID)
	ctx := globalctx.WithGlobalContext(h.cfg.BaseContext, globalctx.GlobalContext{RunID: runID, ProjectID: in.ProjectID})

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if _, err := h.cfg.Pipeline.Run(ctx, in, h.emitter(r)); err != nil {
			h.cfg.Logger.Warn("run %s failed: %v", runID, err)
		}
	}()
	return runID
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// streamRun replays a run's buffered events over a websocket, then streams
// live ones and closes after the terminal event.
func (h *Handler) streamRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(chi.URLParam(r, "runId"))
	rn, ok := h.cfg.Runs.Get(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	replay, live, cancel := rn.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		h.cfg.Logger.Warn("run ws %s: set read deadline: %v", runID, err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	// Inbound frames are ignored; reading drives pong and close handling.
	go func() {
		defer stop()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	write := func(e runner.Event) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(e)
	}
	for _, e := range replay {
		if err := write(e); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-live:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := write(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
