package main

import (
	"fmt"
	"os"

	"e621dl/pkg/config"
	"e621dl/pkg/tagfile"
	"e621dl/pkg/ui"

	"github.com/spf13/cobra"
)

var initTagFile string

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example tag file and configuration file",
	Long: `Create an example tag file and a configuration file holding every option
with its default value.

The tag file is written to tags.txt and the configuration to e621dl.yaml
unless --tags or --config name other paths. Existing files are left alone.`,
	Args: cobra.NoArgs,
	Run:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initTagFile, "tags", "t", "tags.txt", "path of the tag file to create")
}

func runInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "e621dl.yaml"
	}

	created := 0
	if exists(initTagFile) {
		ui.PrintWarning("Tag file already exists, keeping it", initTagFile)
	} else {
		if err := os.WriteFile(initTagFile, []byte(tagfile.ExampleFile), 0644); err != nil {
			ui.PrintError("Failed to create tag file", err)
			os.Exit(1)
		}
		ui.PrintSuccess("Tag file created: " + initTagFile)
		created++
	}

	if exists(configPath) {
		ui.PrintWarning("Configuration file already exists, keeping it", configPath)
	} else {
		cfg := config.DefaultConfig()
		cfg.Output.TagFile = initTagFile
		if err := cfg.Save(configPath); err != nil {
			ui.PrintError("Failed to create configuration file", err)
			os.Exit(1)
		}
		ui.PrintSuccess("Configuration file created: " + configPath)
		created++
	}

	if created == 0 {
		return
	}
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintf(ui.Out, "1. Add searches, pools and sets to %s\n", initTagFile)
	fmt.Fprintln(ui.Out, "2. Optionally store an account with 'e621dl auth login'")
	fmt.Fprintln(ui.Out, "3. Start downloading with 'e621dl grab'")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
