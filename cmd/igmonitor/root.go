package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igmonitor/pkg/logger"
	"igmonitor/pkg/ui"
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
	verbose    bool
)

// rootCmd represents the base command; without a subcommand it performs a run
var rootCmd = &cobra.Command{
	Use:   "igmonitor",
	Short: "Collect recent posts from Instagram accounts into a daily HTML report",
	Long: `igmonitor drives a logged-in Chrome or Chromium through the DevTools protocol,
visits each configured account, and writes the posts published within the age
window to an HTML report named after the day (DD-MM-YYYY.html).

The browser session is reused: start Chrome with --remote-debugging-port=9222
and log in once, or let igmonitor launch it with your profile directory.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		if noColor {
			ui.SetColor(false)
		}
	},
	RunE: runMonitor,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.igmonitor.yaml or ~/.config/igmonitor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and one line per extracted post")

	rootCmd.SetVersionTemplate(`igmonitor {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
