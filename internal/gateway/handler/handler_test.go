package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketforge/internal/artifact"
	"ticketforge/internal/cost"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/logger"
	"ticketforge/internal/projectstore"
	"ticketforge/internal/runner"
	"ticketforge/internal/security"
	"ticketforge/internal/types"
)

const brief = `# Clinic Portal
A web app where patients of a dental clinic manage their visits.

- Online booking
- SMS reminders
- Treatment history
- Staff dashboard
`

func newTestHandler(t *testing.T, maxUpload int64) (*Handler, *projectstore.Store) {
	t.Helper()
	store := projectstore.NewFile(filepath.Join(t.TempDir(), "projects"))
	wf := &runner.Workflow{
		LLM:       llmclient.NewFakeClient(),
		Pricing:   cost.Default,
		Store:     store,
		Artifacts: artifact.NewMemoryStore(),
		Filter:    security.New(maxUpload),
		Logger:    logger.Discard(),
	}
	n := 0
	h := New(Config{
		Pipeline:       wf,
		Projects:       store,
		MaxUploadBytes: maxUpload,
		Logger:         logger.Discard(),
		NewRunID: func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		},
	})
	return h, store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	rec := do(t, h, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestGenerate_RunsInBackground(t *testing.T) {
	h, _ := newTestHandler(t, 0)

	rec := do(t, h, http.MethodPost, "/api/generate", GenerateRequest{Text: brief})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[RunAccepted](t, rec)
	assert.Equal(t, "run-1", accepted.RunID)
	assert.Equal(t, "/api/runs/run-1", rec.Header().Get("Location"))
	h.Wait()

	rec = do(t, h, http.MethodGet, "/api/runs/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		Status  string              `json:"status"`
		Events  []runner.Event      `json:"events"`
		Project *types.ProjectState `json:"project"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "completed", snap.Status)
	require.NotNil(t, snap.Project)
	assert.Len(t, snap.Project.Tickets, 12)
	require.NotEmpty(t, snap.Events)
	assert.Equal(t, runner.EventComplete, snap.Events[len(snap.Events)-1].Kind)

	rec = do(t, h, http.MethodGet, "/api/projects/"+snap.Project.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Clinic Portal", decode[types.ProjectState](t, rec).Requirements.ProjectName)

	rec = do(t, h, http.MethodGet, "/api/projects/"+snap.Project.ID+"/cost", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[types.Cost](t, rec)
	assert.Equal(t, snap.Project.Cost, c)
	assert.Greater(t, c.USD, 0.0)
}

func TestGenerate_FileUpload(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	rec := do(t, h, http.MethodPost, "/api/generate", GenerateRequest{
		FileName: "brief.md",
		FileData: []byte(brief),
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	h.Wait()

	r, ok := h.Runs().Get(decode[RunAccepted](t, rec).RunID)
	require.True(t, ok)
	snap := r.Snapshot()
	require.NotNil(t, snap.Project, snap.Error)
	assert.Equal(t, "Clinic Portal", snap.Project.Requirements.ProjectName)
}

func TestGenerate_RejectsEmptyAndOversize(t *testing.T) {
	h, _ := newTestHandler(t, 64)

	rec := do(t, h, http.MethodPost, "/api/generate", GenerateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode[errorEnvelope](t, rec).Error.Code)

	rec = do(t, h, http.MethodPost, "/api/generate", GenerateRequest{Text: strings.Repeat("a", 65)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGenerate_NonSoftwareRunFails(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	rec := do(t, h, http.MethodPost, "/api/generate", GenerateRequest{Text: "I want to buy a house near the beach."})
	require.Equal(t, http.StatusAccepted, rec.Code)
	h.Wait()

	r, ok := h.Runs().Get("run-1")
	require.True(t, ok)
	snap := r.Snapshot()
	assert.Equal(t, "failed", string(snap.Status))
	assert.Contains(t, snap.Error, "software project")
	assert.Nil(t, snap.Project)
}

func TestUnknownRunAndProject(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs/nope", nil).Code)

	rec := do(t, h, http.MethodGet, "/api/projects/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorEnvelope](t, rec).Error.Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/projects/nope/cost", nil).Code)

	rec = do(t, h, http.MethodPost, "/api/clarify", ClarifyRequest{ProjectID: "nope", Answers: map[string]string{}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClarifyAndEdit(t *testing.T) {
	h, store := newTestHandler(t, 0)
	do(t, h, http.MethodPost, "/api/generate", GenerateRequest{Text: brief})
	h.Wait()
	r, _ := h.Runs().Get("run-1")
	first := r.Snapshot().Project
	require.NotNil(t, first)

	rec := do(t, h, http.MethodPost, "/api/clarify", ClarifyRequest{
		ProjectID: first.ID,
		Answers:   map[string]string{first.Clarifications[0]: "$500/month"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	clarified := decode[types.ProjectState](t, rec)
	assert.Equal(t, "$500/month", clarified.Answers[first.Clarifications[0]])
	assert.True(t, clarified.CreatedAt.Equal(first.CreatedAt))
	assert.Greater(t, clarified.Cost.USD, first.Cost.USD)

	rec = do(t, h, http.MethodPost, "/api/edit", EditRequest{ProjectID: first.ID, Instruction: "keep everything"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[runner.EditOutcome](t, rec)
	assert.Empty(t, out.Changes)
	assert.Len(t, out.Project.Tickets, len(clarified.Tickets))

	rec = do(t, h, http.MethodPost, "/api/edit", EditRequest{ProjectID: first.ID, Instruction: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stored, err := store.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Project.UpdatedAt.UTC(), stored.UpdatedAt.UTC())
}

type stubPipeline struct {
	err error
}

func (s stubPipeline) Run(context.Context, runner.Input, runner.Emitter) (types.ProjectState, error) {
	return types.ProjectState{}, s.err
}

func (s stubPipeline) Clarify(context.Context, string, map[string]string, runner.Emitter) (types.ProjectState, error) {
	return types.ProjectState{}, s.err
}

func (s stubPipeline) Edit(context.Context, string, string, runner.Emitter) (runner.EditOutcome, error) {
	return runner.EditOutcome{}, s.err
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", fmt.Errorf("load: %w", types.ErrNotFound), http.StatusNotFound, ""},
		{"input", &types.InputError{Reason: "empty document"}, http.StatusBadRequest, ""},
		{"too large", &types.InputError{Reason: "too big", TooLarge: true}, http.StatusRequestEntityTooLarge, ""},
		{"validation", &types.ValidationError{Reasons: []string{"no goals"}}, http.StatusUnprocessableEntity, ""},
		{"parse", &types.ParseError{Step: "edit", Err: errors.New("bad json")}, http.StatusUnprocessableEntity,
			(&types.ParseError{Step: "edit"}).UserMessage()},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(Config{Pipeline: stubPipeline{err: tc.err}, Logger: logger.Discard()})
			rec := do(t, h, http.MethodPost, "/api/edit", EditRequest{ProjectID: "p", Instruction: "x"})
			assert.Equal(t, tc.status, rec.Code)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, decode[errorEnvelope](t, rec).Error.Message)
			}
		})
	}
}

func TestStreamRun_ReplaysAndCloses(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	srv := httptest.NewServer(h)
	defer srv.Close()

	rec := do(t, h, http.MethodPost, "/api/generate", GenerateRequest{Text: brief})
	require.Equal(t, http.StatusAccepted, rec.Code)
	runID := decode[RunAccepted](t, rec).RunID

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/runs/" + runID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var events []runner.Event
	for {
		var e runner.Event
		if err := conn.ReadJSON(&e); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		events = append(events, e)
	}
	h.Wait()
	require.NotEmpty(t, events)
	assert.Equal(t, runner.EventStatus, events[0].Kind)
	assert.Equal(t, runner.EventComplete, events[len(events)-1].Kind)
	for _, e := range events {
		assert.Equal(t, runID, e.RunID)
	}
}

func TestStreamRun_UnknownRun(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	rec := do(t, h, http.MethodGet, "/ws/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
