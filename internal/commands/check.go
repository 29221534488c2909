package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gschex1112/songflow/internal/config"
)

const checkTimeout = 2 * time.Minute

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and connectivity without ingesting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(dir)
		},
	}

	cmd.Flags().StringVar(&dir, "config-dir", ".", "Directory containing songflow.yaml")
	return cmd
}

// runCheck exercises every external collaborator read-only: the landing
// catalog listing, the query engine, and the run lock (taken and released).
func runCheck(dir string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	color.Green("config ok: pipeline %q, provider %s", cfg.Pipeline, cfg.Provider)

	logger := newLogger()
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	runner, cleanup, err := buildRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	keys, err := runner.Landing.List(ctx, cfg.Landing.BaseName+"_")
	if err != nil {
		return fmt.Errorf("landing store: %w", err)
	}
	color.Green("landing store ok: %d un-archived object(s)", len(keys))

	if err := runner.Engine.Ping(ctx); err != nil {
		return fmt.Errorf("query engine: %w", err)
	}
	color.Green("query engine ok")

	held, err := runner.Locker.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("run lock: %w", err)
	}
	if !held {
		color.Yellow("run lock busy: a run appears to be in progress")
		return nil
	}
	if err := runner.Locker.Release(ctx); err != nil {
		return fmt.Errorf("releasing run lock: %w", err)
	}
	color.Green("run lock ok")

	return nil
}
