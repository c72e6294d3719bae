package cmd

import (
	"github.com/spf13/cobra"

	"dwhload/internal/pipeline"
	"dwhload/internal/ui"
)

var createTablesYes bool

var createTablesCmd = &cobra.Command{
	Use:   "create-tables",
	Short: "Drop and recreate the staging and star-schema tables",
	Long: `Drop all seven tables if they exist, then create them again.

Existing data is lost. You are asked to confirm unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := confirmDrop(createTablesYes, "create-tables")
		if err != nil {
			return err
		}
		if !ok {
			ui.ShowInfo("Aborted")
			return nil
		}

		if _, err := runSteps(cmd.Context(), pipeline.CreateTables...); err != nil {
			return err
		}
		ui.ShowSuccess("Tables created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createTablesCmd)
	createTablesCmd.Flags().BoolVarP(&createTablesYes, "yes", "y", false, "do not ask for confirmation")
}
