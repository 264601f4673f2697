// Command toastd serves in-app toast notifications for incoming chat messages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "toastd",
		Short: "Toast notifications for the LionsGeek campus app",
		Long: `toastd turns incoming chat messages into short-lived toast
notifications for each signed-in app session.

Messages are deduplicated, at most a few toasts are visible at once
and each one dismisses itself after a few seconds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file (env TOASTD_* overrides it)")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
