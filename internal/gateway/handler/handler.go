package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ticketforge/internal/gateway/middleware"
	"ticketforge/internal/gateway/run"
	"ticketforge/internal/logger"
	"ticketforge/internal/runner"
	"ticketforge/internal/types"
)

// Pipeline is the workflow surface the API drives. *runner.Workflow
// implements it.
type Pipeline interface {
	Run(ctx context.Context, in runner.Input, em runner.Emitter) (types.ProjectState, error)
	Clarify(ctx context.Context, projectID string, answers map[string]string, em runner.Emitter) (types.ProjectState, error)
	Edit(ctx context.Context, projectID, instruction string, em runner.Emitter) (runner.EditOutcome, error)
}

// ProjectReader loads stored projects.
type ProjectReader interface {
	Get(ctx context.Context, id string) (types.ProjectState, error)
}

type Config struct {
	Pipeline Pipeline
	Projects ProjectReader
	Runs     *run.Registry
	// Events receives every run event in addition to the run registry,
	// e.g. the NATS publisher. Optional.
	Events         runner.Emitter
	MaxUploadBytes int64
	Logger         *logger.Logger
	// BaseContext bounds background generation runs. Defaults to
	// context.Background.
	BaseContext context.Context
	NewRunID    func() string
}

// Handler serves the REST API and the run event websocket.
type Handler struct {
	cfg    Config
	router chi.Router
	wg     sync.WaitGroup
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"project not found"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope every failing request gets.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New builds the router. Call Wait on shutdown to let background runs end.
func New(cfg Config) *Handler {
	if cfg.Runs == nil {
		cfg.Runs = run.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Request schema violations are the caller's fault.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	h := &Handler{cfg: cfg}
	router := chi.NewRouter()
	router.Use(middleware.CORS)

	hcfg := huma.DefaultConfig("Ticketforge API", "1.0.0")
	hcfg.OpenAPIPath = "/api/openapi"
	hcfg.DocsPath = "/api/docs"
	hcfg.SchemasPath = "/api/schemas"
	api := humachi.New(router, hcfg)

	registerHealth(api)
	h.registerRuns(api)
	h.registerProjects(api)
	router.Get("/ws/runs/{runId}", h.streamRun)

	h.router = router
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Wait blocks until every background run has finished.
func (h *Handler) Wait() { h.wg.Wait() }

// Runs exposes the registry backing the run endpoints.
func (h *Handler) Runs() *run.Registry { return h.cfg.Runs }

func (h *Handler) emitter(r *run.Run) runner.Emitter {
	if h.cfg.Events == nil {
		return r
	}
	return runner.MultiEmitter{r, h.cfg.Events}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body:   apiErrorBody{Code: code, Message: message, Details: details},
	}
}

// handleError maps the pipeline error taxonomy onto HTTP statuses.
func (h *Handler) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var (
		ie *types.InputError
		ve *types.ValidationError
		pe *types.ParseError
	)
	switch {
	case errors.Is(err, types.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &ie):
		if ie.TooLarge {
			return newAPIError(http.StatusRequestEntityTooLarge, "too_large", ie.Error(), nil)
		}
		return newAPIError(http.StatusBadRequest, "bad_request", ie.Error(), nil)
	case errors.As(err, &ve):
		return newAPIError(http.StatusUnprocessableEntity, "not_a_software_project", ve.Error(),
			map[string]any{"reasons": ve.Reasons})
	case errors.As(err, &pe):
		return newAPIError(http.StatusUnprocessableEntity, "unparseable_model_output", pe.UserMessage(),
			map[string]any{"step": pe.Step})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusServiceUnavailable, "", "request cancelled", nil)
	default:
		h.cfg.Logger.Error("request failed: %v", err)
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}
