package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over HTTP",
		Long:  "Start the HTTP API and, when RABBITMQ_URL is set, the sweep request listener. Stops on SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, cleanup, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			slog.Info("App: starting", "store", cfg.Store.Kind, "addr", cfg.HTTP.Addr)
			if err := app.Serve(ctx); err != nil {
				return err
			}
			slog.Info("App: stopped")
			return nil
		},
	}
}
