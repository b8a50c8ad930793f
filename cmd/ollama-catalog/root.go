package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ollama-catalog/internal"
	"ollama-catalog/internal/configs"
)

var (
	envFile string

	cfg       *configs.AppConfig
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ollama-catalog",
		Short:        "Cache of the public Ollama model library",
		Long:         "Walks ollama.com/library, keeps the catalog in a local store and serves it over HTTP.",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			if envFile != "" {
				cfg, err = configs.LoadConfig(envFile)
			} else {
				cfg, err = configs.LoadConfig()
			}
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Logs go to stderr so table output stays clean on stdout.
			logger, closer, err := configs.NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			logCloser = closer
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default ./.env when present)")

	rootCmd.AddCommand(
		newListCmd(),
		newShowCmd(),
		newUpdateCmd(),
		newServeCmd(),
		newStoresCmd(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// openApp builds the application for one command and returns it with its
// cleanup.
func openApp(cmd *cobra.Command, withListener bool) (*internal.App, func(), error) {
	app, err := internal.NewApp(cmd.Context(), cfg, withListener)
	if err != nil {
		return nil, nil, err
	}
	return app, func() {
		if err := app.Close(); err != nil {
			slog.Warn("App: close failed", "error", err)
		}
	}, nil
}
