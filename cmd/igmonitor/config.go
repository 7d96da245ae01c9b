package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igmonitor/pkg/config"
	"igmonitor/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igmonitor configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGMONITOR_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default values",
	Long: `Create a configuration file holding every option at its default value.

The file will be created in the current directory as '.igmonitor.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration after merging every source:
  - Environment variables
  - Configuration file
  - Default values`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the merged configuration.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Timezone and account handles
  - Output and log directory accessibility`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

// envCmd lists the environment variables
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables igmonitor reads",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.DefaultConfig().EnvHelp())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(envCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".igmonitor.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to start over)", configPath)
	}

	cfg := config.DefaultConfig()
	cfg.Instagram.Accounts = []string{"natgeo"}
	if err := cfg.Save(configPath); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. List the accounts to follow under instagram.accounts")
	fmt.Fprintln(out, "2. Start Chrome with --remote-debugging-port=9222 and log in to Instagram")
	fmt.Fprintln(out, "3. Run 'igmonitor config validate', then 'igmonitor'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))

	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (IGMONITOR_*)")
	if configFile != "" {
		fmt.Fprintf(out, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "3. Configuration file: (searched in the default locations)")
	}
	fmt.Fprintln(out, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var warnings, problems []string

	if len(cfg.Instagram.Accounts) == 0 {
		warnings = append(warnings, "no accounts configured, runs need --accounts")
	}
	if err := os.MkdirAll(cfg.Report.OutputDir, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	} else if cfg.Logging.Dir != "" {
		if err := os.MkdirAll(cfg.Logging.Dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.Browser.UserDataDir != "" {
		if _, err := os.Stat(cfg.Browser.UserDataDir); err != nil {
			warnings = append(warnings, "browser user-data directory not found: "+cfg.Browser.UserDataDir)
		}
	}

	out := cmd.OutOrStdout()
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
		fmt.Fprintln(out)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Accounts: %d\n", len(cfg.Instagram.Accounts))
	fmt.Fprintf(out, "  Browser endpoint: %s://%s:%d\n", cfg.Browser.Scheme, cfg.Browser.Host, cfg.Browser.Port)
	fmt.Fprintf(out, "  Output directory: %s\n", cfg.Report.OutputDir)
	fmt.Fprintf(out, "  Age window: %d days (%s)\n", cfg.Report.MaxAgeDays, cfg.Report.Timezone)
	fmt.Fprintf(out, "  Posts per account: %d\n", cfg.Instagram.MaxPostsPerAccount)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
