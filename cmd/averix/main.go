// Command averix is the trader client for the Averix platform. It logs in,
// shows the dashboard, places orders and stakes from the terminal, and runs
// the local dashboard bridge server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/averix/internal/config"
)

// cli carries state shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE.
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func main() {
	c := &cli{}
	root := newRootCmd(c)

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "averix: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "averix",
		Short:         "Averix trader client and dashboard bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.toml", "path to configuration file")

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newDashboardCmd(c),
		newOrderCmd(c),
		newStakeCmd(c),
		newHistoryCmd(c),
		newStatsCmd(c),
		newServeCmd(c),
		newMonitorCmd(c),
		newExportCmd(c),
	)
	return root
}

// load reads and validates the configuration and installs the logger.
// Logs go to stderr so command output on stdout stays machine-readable.
func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", c.configPath, err)
	}

	c.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(c.logger)

	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
