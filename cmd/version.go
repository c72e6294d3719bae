package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dwhload/internal/catalog"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display dwhload version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dwhload version %s\n", Version)
		fmt.Fprintf(out, "Built at: %s\n", BuildTime)
		fmt.Fprintf(out, "Dialects: %s\n", strings.Join(catalog.Dialects(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
