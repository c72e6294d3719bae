package cmd

import (
	"github.com/spf13/cobra"

	"dwhload/internal/pipeline"
	"dwhload/internal/ui"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Load the staging tables and populate the star schema",
	Long: `Copy event and song data into the staging tables, insert into the fact
and dimension tables, then print row counts.

The tables must exist (see create-tables). Dimension rows are appended, so
running etl twice without recreating the tables duplicates them; use run
for a full refresh.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := runSteps(cmd.Context(), pipeline.ETL...); err != nil {
			return err
		}
		ui.ShowSuccess("Load finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(etlCmd)
}
