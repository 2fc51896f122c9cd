// Package main is the entry point for the breachwatch CLI.
//
// BreachWatch can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	breachwatch serve -c config.yaml    # Start the dashboard
//	breachwatch validate -c config.yaml # Validate configuration
//	breachwatch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "breachwatch",
	Short: "An email breach monitoring dashboard",
	Long: `BreachWatch polls the Have I Been Pwned (HIBP) breach index for a
list of email addresses and shows one sensor per address in a web UI with
Server-Sent Events for live updates.

Quick start:
  1. Create a config file (breachwatch.yaml)
  2. Export your HIBP subscription key: export HIBP_API_KEY=...
  3. Run: breachwatch serve -c breachwatch.yaml
  4. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  api_key: ${HIBP_API_KEY}
  emails:
    - alice@example.com
    - bob@example.com`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this breachwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("breachwatch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
