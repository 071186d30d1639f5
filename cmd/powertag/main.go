// PowerTag Monitor - Modbus energy sensor sampling and alerting
//
// This is the main entry point for the PowerTag monitor. It polls
// PowerTag wireless energy sensors through their Modbus gateways, keeps
// the latest reading of every device in memory, logs every reading and
// raises voltage and current alerts.
//
// Commands:
//   - run (default): sample until interrupted
//   - validate: load and check the configuration, then exit
//   - migrate status|up|down: manage the history database schema
//   - version: print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
	"github.com/nerrad567/powertag-monitor/internal/powertag"
	"github.com/nerrad567/powertag-monitor/internal/register"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "powertag",
	Short:         "Sample PowerTag energy sensors over Modbus",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCommand,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample devices until interrupted (default)",
	Args:  cobra.NoArgs,
	RunE:  runCommand,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return validate(cmd, configPath)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "powertag %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "configuration file (env POWERTAG_CONFIG)")
	rootCmd.AddCommand(runCmd, validateCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCommand cancels on interrupt signals (Ctrl+C, SIGTERM) and runs the
// sampler until then.
func runCommand(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return run(ctx, configPath)
}

// validate loads the configuration and builds the register schema without
// touching any gateway, printing a short summary on success.
func validate(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	schema, err := register.SchemaFromConfig(cfg.Registers)
	if err != nil {
		return fmt.Errorf("building register schema: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "configuration OK: %s\n", path)
	fmt.Fprintf(out, "  gateways:  %d (%s)\n", len(cfg.Modbus.Gateways), cfg.Modbus.Mode)
	fmt.Fprintf(out, "  powertags: %d\n", len(powertag.TagsFromConfig(cfg.PowerTags)))
	fmt.Fprintf(out, "  registers: %d\n", schema.Len())
	fmt.Fprintf(out, "  poll:      %s\n", cfg.GetPollInterval())
	return nil
}

// getConfigPath returns the configuration file path.
// Uses POWERTAG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("POWERTAG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
