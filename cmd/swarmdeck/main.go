// Package main is the entry point for the swarmdeck CLI.
//
// Swarmdeck can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	swarmdeck serve -c config.yaml    # Start the dashboard
//	swarmdeck watch -c config.yaml    # Terminal dashboard (no browser)
//	swarmdeck validate -c config.yaml # Validate configuration
//	swarmdeck version                 # Show version info
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
	Use:   "swarmdeck",
	Short: "An operator dashboard for autonomous agent swarms",
	Long: `Swarmdeck is a real-time operator dashboard for a swarm of
autonomous agents.

It polls the swarm backend's live, chat, and evaluator feeds on
independent intervals, embeds each agent's desktop stream, and serves a
web UI with Server-Sent Events for live updates.

Quick start:
  1. Create a config file (swarmdeck.yaml)
  2. Run: swarmdeck serve -c swarmdeck.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  api_base: http://localhost:8000/api
  feeds:
    live:
      interval: 5s
  agents:
    - id: agent-1
      stream_url: http://streams.local/agent-1/vnc.html?autoconnect=true`,
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
	Long:  `Print the version, commit hash, and build date of this swarmdeck binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("swarmdeck %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
