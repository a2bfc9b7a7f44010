package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete otto configuration
type Config struct {
	Paths       PathsConfig       `mapstructure:"paths" yaml:"paths"`
	Worktree    WorktreeConfig    `mapstructure:"worktree" yaml:"worktree"`
	Runners     RunnersConfig     `mapstructure:"runners" yaml:"runners"`
	Quality     QualityConfig     `mapstructure:"quality" yaml:"quality"`
	Integration IntegrationConfig `mapstructure:"integration" yaml:"integration"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Prompt      PromptConfig      `mapstructure:"prompt" yaml:"prompt"`
}

// PathsConfig controls where otto keeps its durable artifacts
type PathsConfig struct {
	// ArtifactRoot is the directory, relative to the main repo, that holds
	// tickets, runs, states, locks, logs and sessions (default: ".otto")
	ArtifactRoot string `mapstructure:"artifact_root" yaml:"artifact_root"`
}

// WorktreeConfig controls how run worktrees are created
type WorktreeConfig struct {
	// BaseBranch is the branch new run branches start from and integrate with
	BaseBranch string `mapstructure:"base_branch" yaml:"base_branch"`
	// WorktreesDir is the directory, relative to the main repo, that holds worktrees
	WorktreesDir string `mapstructure:"worktrees_dir" yaml:"worktrees_dir"`
	// BranchPrefix prefixes run branch names: <prefix>-<date>-<slug>
	BranchPrefix string `mapstructure:"branch_prefix" yaml:"branch_prefix"`
}

// RunnerConfig describes one agent runner
type RunnerConfig struct {
	// Kind selects the runner implementation: "echo", "claude-code" or "command"
	Kind string `mapstructure:"kind" yaml:"kind"`
	// Command is the executable for "claude-code" (default "claude") and "command" runners
	Command string `mapstructure:"command" yaml:"command,omitempty"`
	// Args are extra arguments passed before the prompt
	Args []string `mapstructure:"args" yaml:"args,omitempty"`
	// Model is passed as --model to runners that support it
	Model string `mapstructure:"model" yaml:"model,omitempty"`
}

// RunnersConfig maps agent roles to runners
type RunnersConfig struct {
	// Default is used for every role without an explicit entry
	Default RunnerConfig `mapstructure:"default" yaml:"default"`
	// ByRole overrides the default for individual roles
	// (projectLead, lead, task, reviewer, summarize)
	ByRole map[string]RunnerConfig `mapstructure:"by_role" yaml:"by_role,omitempty"`
}

// CheckConfig describes one quality or integration check command
type CheckConfig struct {
	Name           string            `mapstructure:"name" yaml:"name"`
	Cmd            []string          `mapstructure:"cmd" yaml:"cmd"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty"`
	Env            map[string]string `mapstructure:"env" yaml:"env,omitempty"`
}

// Timeout returns the check timeout, or zero for no timeout.
func (c CheckConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QualityConfig controls the per-task and integration quality gate
type QualityConfig struct {
	Checks []CheckConfig `mapstructure:"checks" yaml:"checks,omitempty"`
	// EnvFile is a dotenv file, relative to the worktree, loaded into every check's environment
	EnvFile string `mapstructure:"env_file" yaml:"env_file,omitempty"`
}

// IntegrationConfig holds checks that only run during the integration phase
type IntegrationConfig struct {
	Checks []CheckConfig `mapstructure:"checks" yaml:"checks,omitempty"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn" or "error"
	Level string `mapstructure:"level" yaml:"level"`
}

// PromptConfig controls how otto asks the operator questions
type PromptConfig struct {
	// Mode is "auto" (TUI when a terminal is attached), "tui" or "headless"
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			ArtifactRoot: ".otto",
		},
		Worktree: WorktreeConfig{
			BaseBranch:   "main",
			WorktreesDir: ".worktrees",
			BranchPrefix: "otto",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Prompt: PromptConfig{
			Mode: "auto",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("paths.artifact_root", defaults.Paths.ArtifactRoot)

	viper.SetDefault("worktree.base_branch", defaults.Worktree.BaseBranch)
	viper.SetDefault("worktree.worktrees_dir", defaults.Worktree.WorktreesDir)
	viper.SetDefault("worktree.branch_prefix", defaults.Worktree.BranchPrefix)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("prompt.mode", defaults.Prompt.Mode)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// HasRunner reports whether at least one runner is configured.
func (c *Config) HasRunner() bool {
	if c.Runners.Default.Kind != "" {
		return true
	}
	for _, r := range c.Runners.ByRole {
		if r.Kind != "" {
			return true
		}
	}
	return false
}

// RunnerFor returns the runner configuration for a role. Role lookup is
// case-insensitive because viper lowercases map keys.
func (c *Config) RunnerFor(role string) RunnerConfig {
	for name, r := range c.Runners.ByRole {
		if strings.EqualFold(name, role) && r.Kind != "" {
			return r
		}
	}
	return c.Runners.Default
}

// ArtifactRootDir resolves the artifact root against the main repo path.
func (c *Config) ArtifactRootDir(mainRepoPath string) string {
	root := c.Paths.ArtifactRoot
	if root == "" {
		root = Default().Paths.ArtifactRoot
	}
	if filepath.IsAbs(root) {
		return root
	}
	return filepath.Join(mainRepoPath, root)
}

// ConfigDir returns the user configuration directory for otto
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "otto")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "otto")
}

// ConfigFile returns the path to the user config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
