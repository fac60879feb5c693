package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/vetclinic-scheduler/internal/config"
	"github.com/example/vetclinic-scheduler/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "scheduler",
		Short:        "Veterinary clinic appointment scheduler",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		tokenCmd(),
	)
	return rootCmd
}

// loadRuntime reads an optional .env file, the process environment and builds the
// JSON logger every command shares.
func loadRuntime() (config.Config, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}
	logger := logging.NewLogger(os.Stdout, cfg.LogLevel).With("service", "scheduler", "version", version)
	return cfg, logger, nil
}

// withStore opens the configured store, runs fn and closes the store again.
func withStore(ctx context.Context, cfg config.Config, logger *slog.Logger, fn func(store) error) error {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()
	return fn(st)
}
