package main

import (
	"fmt"
	"os"
	"runtime"

	"e621dl/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "e621dl",
	Short: "Download e621 searches, pools and sets from a tag file",
	Long: `e621dl reads a tag file describing searches, pools, sets and single posts,
resolves every tag against the catalog and downloads the matching files.

Features:
  - Alias resolution and per-category download limits
  - Account and local blacklists
  - Concurrent downloads with a paced API client
  - Existing files are skipped, so runs can be repeated safely
  - Credentials kept in the system keychain or an encrypted file

Running e621dl without a subcommand is the same as 'e621dl grab'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColorEnabled(false)
		}
		if quiet {
			ui.SetQuietMode(true)
		}
	},
	RunE: runGrab,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./e621dl.yaml or ~/.config/e621dl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print only errors and the final summary")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per entry and debug logs")

	rootCmd.SetVersionTemplate(`e621dl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags returns the config overrides shared by every command
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	case quiet:
		flags["log-level"] = "error"
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags
}
