package cmd

import (
	"github.com/spf13/cobra"

	"dwhload/internal/catalog"
	"dwhload/internal/pipeline"
	"dwhload/internal/ui"
)

var runYes bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recreate all tables and load them (create-tables followed by etl)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := confirmDrop(runYes, "run")
		if err != nil {
			return err
		}
		if !ok {
			ui.ShowInfo("Aborted")
			return nil
		}

		if _, err := runSteps(cmd.Context(), pipeline.Full...); err != nil {
			return err
		}
		ui.ShowSuccess("Warehouse rebuilt")
		return nil
	},
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Print the row count of every table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runSteps(cmd.Context(), catalog.KindCount)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(countsCmd)
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "do not ask for confirmation")
}
