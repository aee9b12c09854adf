package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via ldflags.
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "advisor %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  build time: %s\n", BuildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit:     %s\n", GitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  go:         %s %s/%s\n",
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
