package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vitalvas/signgate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `The config command resolves configuration exactly as serve does and prints
the result. The subgraph DSN is masked.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}

		return cfg.WriteYAML(cmd.OutOrStdout())
	},
}

func init() {
	config.RegisterFlags(configCmd.Flags())
}
