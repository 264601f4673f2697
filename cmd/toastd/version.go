package main

import (
	"fmt"
	"runtime"

	"github.com/bissquit/lionsgeek-toasts/internal/version"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, version.Version)
				return
			}

			fmt.Fprintf(out, "Version:    %s\n", version.Version)
			fmt.Fprintf(out, "Commit:     %s\n", version.GitCommit)
			fmt.Fprintf(out, "Built:      %s\n", version.BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
