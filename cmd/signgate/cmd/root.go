package cmd

import "github.com/spf13/cobra"

// AddCommands adds all the subcommands and shared flags to the root command.
func AddCommands(root *cobra.Command) {
	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")

	root.AddCommand(serveCmd)
	root.AddCommand(signCmd)
	root.AddCommand(callCmd)
	root.AddCommand(configCmd)
	root.AddCommand(versionCmd)
}
