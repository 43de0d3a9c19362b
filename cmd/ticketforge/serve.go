package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"ticketforge/internal/logger"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			// In-flight runs outlive the signal and get the shutdown timeout to finish.
			go func() { errCh <- a.Serve(context.WithoutCancel(ctx), addr) }()

			select {
			case err := <-errCh:
				_ = a.Close()
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down server...")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.Shutdown(sctx); err != nil {
				return err
			}
			logger.Info("server exited")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	return cmd
}
