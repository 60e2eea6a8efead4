package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reelgrab %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", gitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", buildDate)
		fmt.Fprintf(cmd.OutOrStdout(), "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
