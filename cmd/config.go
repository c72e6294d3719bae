package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dwhload/internal/config"
	"dwhload/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the loaded configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with the password masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		data, err := config.Marshal(config.Redacted(cfg))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configuration has everything a load needs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if _, err := buildCatalog(cfg); err != nil {
			return err
		}
		ui.ShowSuccess(fmt.Sprintf("Configuration is valid for dialect %s", cfg.Warehouse.Dialect))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
