package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/otto/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create otto configuration",
	Long: `View or create otto configuration.

Without arguments, displays the current configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/otto/config.yaml.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return configError(err)
	}
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	if !cfg.HasRunner() {
		fmt.Fprintln(out, warnStyle.Render("No runner configured. Set runners.default.kind (echo, claude-code or command)."))
	}
	fmt.Fprintln(out)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// defaultConfigHeader precedes the rendered defaults in a new config file.
const defaultConfigHeader = `# otto configuration
#
# runners.default.kind selects the agent runner for every role:
#   echo         replies with the prompt (dry runs)
#   claude-code  runs the claude CLI
#   command      runs runners.default.command with the prompt on stdin
# runners.by_role overrides individual roles:
#   projectLead, lead, task, reviewer, summarize
#
# quality.checks and integration.checks are lists of
#   { name, cmd: [argv...], timeout_seconds, env }

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	defaults := config.Default()
	defaults.Runners.Default = config.RunnerConfig{Kind: "claude-code"}
	body, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	if err := os.WriteFile(configFile, append([]byte(defaultConfigHeader), body...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(".otto", "config.yaml"))
	fmt.Fprintf(out, "  2. %s\n", config.ConfigFile())
	fmt.Fprintf(out, "  3. $HOME/.config/otto/config.yaml\n")
	fmt.Fprintln(out, "\nEnvironment variables: OTTO_* (e.g., OTTO_WORKTREE_BASE_BRANCH)")

	return nil
}
