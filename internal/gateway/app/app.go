package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"ticketforge/internal/artifact"
	"ticketforge/internal/cost"
	"ticketforge/internal/eventbus"
	"ticketforge/internal/gateway/config"
	"ticketforge/internal/gateway/handler"
	gatewayserver "ticketforge/internal/gateway/server"
	"ticketforge/internal/llm"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/logger"
	"ticketforge/internal/projectstore"
	"ticketforge/internal/runner"
	"ticketforge/internal/security"
)

// App owns every long-lived dependency of a ticketforge process.
type App struct {
	Config    *config.Config
	Store     *projectstore.Store
	Artifacts artifact.Store
	Workflow  *runner.Workflow
	Publisher *eventbus.Publisher
	Logger    *logger.Logger

	llm     llmclient.LLMClient
	nc      *nats.Conn
	ns      *server.Server
	handler *handler.Handler
	server  *gatewayserver.Server
}

// New wires the store, artifact archive, model client, event bus and
// workflow described by cfg. The HTTP server is built lazily by Serve.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Default
	}
	a := &App{Config: cfg, Logger: log}

	store, err := projectstore.Open(projectstore.Options{
		Backend:   cfg.Store.Backend,
		Dir:       cfg.Store.Dir,
		DSN:       cfg.Store.DSN,
		CacheSize: cfg.Store.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}
	a.Store = store

	if cfg.Artifacts.Enabled {
		s3, err := artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.Artifacts.Endpoint,
			Region:    cfg.Artifacts.Region,
			AccessKey: cfg.Artifacts.AccessKey,
			SecretKey: cfg.Artifacts.SecretKey,
			Bucket:    cfg.Artifacts.Bucket,
			UseSSL:    cfg.Artifacts.UseSSL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to init artifact store: %w", err)
		}
		a.Artifacts = s3
	}

	client, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		RPS:         cfg.LLM.RPS,
		Burst:       cfg.LLM.Burst,
		MaxAttempts: cfg.LLM.MaxAttempts,
		RetryDelay:  cfg.LLM.RetryDelay,
		UsageLedger: cfg.LLM.UsageLedger,
		Logger:      log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.llm = client

	if cfg.Events.Embedded || cfg.Events.URL != "" {
		if cfg.Events.Embedded {
			if a.ns, err = eventbus.StartEmbedded(); err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to start event bus: %w", err)
			}
		}
		if a.nc, err = eventbus.Connect(cfg.Events.URL, a.ns); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect event bus: %w", err)
		}
		a.Publisher = eventbus.NewPublisher(a.nc, cfg.Events.Prefix)
	}

	a.Workflow = &runner.Workflow{
		LLM:         client,
		Pricing:     cost.PriceFor(cfg.LLM.Model),
		Store:       store,
		Artifacts:   a.Artifacts,
		Filter:      security.New(cfg.Pipeline.MaxUploadBytes),
		BatchSize:   cfg.Pipeline.BatchSize,
		Concurrency: cfg.Pipeline.Concurrency,
		Logger:      log,
	}
	return a, nil
}

// Emitter wraps em so events also reach the event bus when one is configured.
func (a *App) Emitter(em runner.Emitter) runner.Emitter {
	if a.Publisher == nil {
		return em
	}
	if em == nil {
		return a.Publisher
	}
	return runner.MultiEmitter{em, a.Publisher}
}

// Handler builds the REST API over the app's workflow. Background runs live
// until ctx is cancelled.
func (a *App) Handler(ctx context.Context) *handler.Handler {
	if a.handler == nil {
		cfg := handler.Config{
			Pipeline:       a.Workflow,
			Projects:       a.Store,
			MaxUploadBytes: a.Config.Pipeline.MaxUploadBytes,
			Logger:         a.Logger,
			BaseContext:    ctx,
		}
		if a.Publisher != nil {
			cfg.Events = a.Publisher
		}
		a.handler = handler.New(cfg)
	}
	return a.handler
}

// Serve blocks serving the API on addr (the configured address when empty).
func (a *App) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.Config.Server.Addr
	}
	a.server = gatewayserver.New(addr, a.Handler(ctx), a.Logger)
	return a.server.Start()
}

// Shutdown stops the HTTP server, waits for running pipelines and releases
// every dependency.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.handler != nil {
		done := make(chan struct{})
		go func() {
			a.handler.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for runs: %w", ctx.Err()))
		}
	}
	errs = append(errs, a.Close())
	return errors.Join(errs...)
}

// Close releases the model client, store and event bus.
func (a *App) Close() error {
	var errs []error
	if a.llm != nil {
		errs = append(errs, a.llm.Close())
		a.llm = nil
	}
	eventbus.Shutdown(a.nc, a.ns)
	a.nc, a.ns = nil, nil
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
