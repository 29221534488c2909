package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gschex1112/songflow/internal/config"
)

const runTimeout = 30 * time.Minute

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one full ingestion pass",
		Long: `Fetches the station's now-playing page, lands the batch, refreshes
staging from the full landing catalog, merges new plays into the datamart,
and archives the consumed landing objects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(dir)
		},
	}

	cmd.Flags().StringVar(&dir, "config-dir", ".", "Directory containing songflow.yaml")
	return cmd
}

func runPipeline(dir string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	runner, cleanup, err := buildRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := runner.Run(ctx)
	if err != nil {
		color.Red("Run failed: %v", err)
		return err
	}

	color.Green("Run %s complete: %d record(s) fetched, %d row(s) merged, %d object(s) archived",
		result.RunID, result.RecordsFetched, result.RowsMerged, result.ObjectsMoved)
	return nil
}
