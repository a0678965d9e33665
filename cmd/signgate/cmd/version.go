package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X github.com/vitalvas/signgate/cmd/signgate/cmd.version=...".
var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "signgate %s (%s) %s/%s %s\n",
			version, commit, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}
