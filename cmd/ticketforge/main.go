package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"ticketforge/internal/gateway/app"
	"ticketforge/internal/gateway/config"
	"ticketforge/internal/logger"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "ticketforge",
		Short: "Turn project briefs into development tickets",
		Long: `ticketforge reads a project brief (text, markdown or PDF), extracts its
requirements with a language model and turns them into estimated, prioritised
development tickets. Projects are stored and can be refined afterwards by
answering clarification questions or by editing tickets in plain language.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(opts))
	root.AddCommand(generateCmd(opts))
	root.AddCommand(clarifyCmd(opts))
	root.AddCommand(editCmd(opts))
	root.AddCommand(showCmd(opts))
	root.AddCommand(costCmd(opts))
	return root
}

// loadApp reads configuration, configures logging and wires the app.
func loadApp(ctx context.Context, opts *rootOptions) (*app.App, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := logger.Configure(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger.Default)
}

// Version set via ldflags during build
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(version))
	stop()
	_ = logger.Default.Close()
	if err != nil {
		os.Exit(1)
	}
}
