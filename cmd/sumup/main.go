package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/config"
	"github.com/h0rv/sumup/internal/logging"
	"github.com/h0rv/sumup/internal/telemetry"
)

const (
	defaultConfigPath     = "sumup.yml"
	telemetryFlushTimeout = 5 * time.Second
)

// CLI flags
var (
	configFlag  string
	verboseFlag bool
	boardFlag   string
)

// cli is the state shared by the subcommands of one invocation.
type cli struct {
	cfg      *config.Config
	logger   *zap.Logger
	shutdown func(context.Context) error
	closers  []func() error
}

func main() {
	c := &cli{}
	err := newRootCmd(c).Execute()
	// PersistentPostRun is skipped when a command fails
	c.teardown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sumup",
		Short: "Sum up numeric card fields per list",
		Long: `sumup adds numeric fields to the cards of a kanban board and shows their
totals on the first card of every list.

Boards come from a local YAML file, a GitHub Projects v2 project or, when
serving, from the cards sent with each request.

Configuration is read from sumup.yml and SUMUP_* environment variables.

GitHub authentication:
  1. GitHub CLI: Run 'gh auth login' (preferred)
  2. Environment variable: Set GITHUB_TOKEN`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.teardown()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", defaultConfigPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&boardFlag, "board", "", "Board ID. Overrides the configured board.")

	rootCmd.AddCommand(
		newServeCmd(c),
		newBoardCmd(c),
		newFieldsCmd(c),
		newValuesCmd(c),
		newSumCmd(c),
	)
	return rootCmd
}

// setup loads the configuration and builds the logger and tracer.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if boardFlag != "" {
		cfg.Board = boardFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	c.cfg = cfg

	logOpts := logging.Options{Level: cfg.Log.Level, Verbose: verboseFlag}
	// The board owns the terminal
	if cmd.Name() == "board" {
		logOpts.File = cfg.Log.File
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	c.logger = logger

	shutdown, err := telemetry.Setup(cmd.Context(), telemetry.Options{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	c.shutdown = shutdown
	return nil
}

func (c *cli) teardown() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("Close failed", zap.Error(err))
		}
	}
	c.closers = nil

	if c.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := c.shutdown(ctx); err != nil {
			c.logger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
		c.shutdown = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
