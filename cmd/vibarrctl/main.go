// Command vibarrctl is a thin administrative CLI for a running vibarrd: it
// talks to the daemon's REST API rather than the database directly. It
// imports internal/store for response-shape types and internal/scheduler
// for job-name constants, but never opens a database connection or starts
// a scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "vibarrctl",
		Short:   "vibarrctl - administer a running vibarrd instance",
		Long:    `vibarrctl talks to a vibarrd daemon's HTTP API to inspect the wishlist, review recommendations, manage automation rules, and trigger scheduled jobs on demand.`,
		Version: version,
	}
	rootCmd.PersistentFlags().String("addr", "http://127.0.0.1:8420", "vibarrd base URL")

	rootCmd.AddCommand(
		newWishlistCmd(),
		newRecommendationsCmd(),
		newRulesCmd(),
		newJobsCmd(),
		newStatusCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func clientFor(cmd *cobra.Command) *apiClient {
	addr, _ := cmd.Flags().GetString("addr")
	return newClient(addr)
}
