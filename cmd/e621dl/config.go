package main

import (
	"fmt"
	"os"
	"path/filepath"

	"e621dl/pkg/config"
	"e621dl/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
	Long: `Inspect the e621dl configuration.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (E621DL_*)
  - .env files
  - Configuration file
  - Default values`,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after every source has been applied.

The API key is masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration and check that the paths it names are usable.

This command checks:
  - YAML syntax
  - Value ranges
  - Output and log directories
  - Presence of the tag file`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		os.Exit(1)
	}

	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		ui.PrintError("Failed to format configuration", err)
		os.Exit(1)
	}

	fmt.Fprintln(ui.Out, ui.Bold("Current Configuration"))
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))

	fmt.Fprintln(ui.Out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Out, "1. Command line flags")
	fmt.Fprintln(ui.Out, "2. Environment variables (E621DL_*)")
	fmt.Fprintln(ui.Out, "3. .env files")
	if configFile != "" {
		fmt.Fprintf(ui.Out, "4. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(ui.Out, "4. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(ui.Out, "5. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		os.Exit(1)
	}

	var warnings, problems []string

	if cfg.E621.Username == "" {
		warnings = append(warnings, "no account configured; stored accounts or anonymous access will be used")
	}
	if !exists(cfg.Output.TagFile) {
		warnings = append(warnings, fmt.Sprintf("tag file %s does not exist (run 'e621dl init')", cfg.Output.TagFile))
	}
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Out, "  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Out, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Out)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Catalog: %s\n", cfg.EffectiveBaseURL())
	fmt.Fprintf(ui.Out, "  Tag file: %s\n", cfg.Output.TagFile)
	fmt.Fprintf(ui.Out, "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(ui.Out, "  Naming: %s\n", cfg.Output.NamingConvention)
	fmt.Fprintf(ui.Out, "  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Fprintf(ui.Out, "  Network concurrency: %d\n", cfg.Network.Concurrency)
	fmt.Fprintf(ui.Out, "  Rate limit: %d requests/minute, %s apart\n", cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.MinInterval)
	fmt.Fprintf(ui.Out, "  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Fprintf(ui.Out, "  Log level: %s\n", cfg.Logging.Level)
}
