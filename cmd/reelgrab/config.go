package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"reelgrab/pkg/auth"
	"reelgrab/pkg/config"
	"reelgrab/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage reelgrab configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (REELGRAB_*)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration as YAML.

The file is created as 'reelgrab.yaml' in the current directory unless
a different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source.

Session cookies are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "reelgrab.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(ui.Output, "To overwrite, first remove the existing file:")
		fmt.Fprintf(ui.Output, "  rm %s\n", configPath)
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Configuration written to %s", configPath))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	display.Session.ID = auth.MaskString(display.Session.ID)
	display.Session.CSRFToken = auth.MaskString(display.Session.CSRFToken)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))

	fmt.Fprintln(ui.Output, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(ui.Output, "1. Command line flags")
	fmt.Fprintln(ui.Output, "2. Environment variables (REELGRAB_*)")
	if configFile != "" {
		fmt.Fprintf(ui.Output, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(ui.Output, "3. Configuration file: (searched default locations)")
	}
	fmt.Fprintln(ui.Output, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return fmt.Errorf("configuration file is invalid: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("environment is invalid: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}
