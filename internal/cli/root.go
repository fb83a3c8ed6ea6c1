// Package cli holds the coordinator's cobra commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/call-service/config"
	"github.com/cwrk-planet/call-service/pkg/logger"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

type options struct {
	configPath string
}

// NewRootCommand builds the command tree. Running it without a subcommand serves.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "coordinator",
		Short:   "Realtime room coordinator: signaling relay and room chat over websockets",
		Version: Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default: $CONFIG_PATH or "+config.DefaultPath+")")

	root.AddCommand(newServeCommand(opts), newMentorCommand(opts))
	return root
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	root.SilenceErrors = true
	root.SilenceUsage = true

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func loadConfig(opts *options) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.Init(logger.Config{
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		Debug:     cfg.Logging.Debug,
		AddSource: cfg.Logging.AddSource,
	})
	return cfg, log, nil
}
