package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vitalvas/signgate/cmd/signgate/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "signgate",
	Short: "Signed query authentication gateway for campaign task checks",
	Long: `signgate serves campaign task completion checks behind exchange-style
RSA query signatures. It also ships the client side: signing a query and
calling a running gateway with a signed request.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cmd.AddCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
