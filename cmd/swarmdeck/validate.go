package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentvillage/swarmdeck/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a swarmdeck configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  swarmdeck validate -c config.yaml
  swarmdeck validate --config /etc/swarmdeck/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	enabledFeeds := 0
	for _, key := range []string{"live", "chat", "evaluator"} {
		fc := cfg.Feeds[key]
		if fc.Enabled == nil || *fc.Enabled {
			enabledFeeds++
		}
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:     %d\n", cfg.Port)
	fmt.Printf("  API base: %s\n", cfg.APIBase)
	fmt.Printf("  Feeds:    %d of 3 enabled\n", enabledFeeds)
	fmt.Printf("  Agents:   %d pre-registered viewports\n", len(cfg.Agents))

	return nil
}
