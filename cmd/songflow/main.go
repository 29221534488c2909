package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gschex1112/songflow/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "songflow",
		Short: "Batch ingestion of a radio station's now-playing history",
		Long: `Songflow periodically captures the "last songs played" list from a radio
station's public page and accumulates it, without duplicates, in a
historical datamart. Each run lands one immutable CSV batch, bridges the
un-archived landing catalog into the query engine, fully refreshes staging,
merges new plays under the (Song, Artist, DatePlayed, TimePlayed) key, and
archives the consumed objects.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewRunCmd(),
		commands.NewCheckCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
