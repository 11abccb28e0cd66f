// Package commands implements the meshrepctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient is the client used for every request against the admin API.
	httpClient *http.Client

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the meshrepd admin API base URL.
	serverAddr string
)

// rootCmd is the top-level cobra command for meshrepctl.
var rootCmd = &cobra.Command{
	Use:   "meshrepctl",
	Short: "CLI client for the meshrepd repeater node",
	Long:  "meshrepctl communicates with a running meshrepd node's admin HTTP API to inspect and manage it.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		httpClient = &http.Client{Timeout: 10 * time.Second}
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "http://localhost:8420",
		"meshrepd admin API base URL")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(aclCmd())
	rootCmd.AddCommand(neighboursCmd())
	rootCmd.AddCommand(regionsCmd())
	rootCmd.AddCommand(bridgeCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
