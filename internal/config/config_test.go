package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Paths.ArtifactRoot != ".otto" {
		t.Errorf("Paths.ArtifactRoot = %q, want %q", cfg.Paths.ArtifactRoot, ".otto")
	}
	if cfg.Worktree.BaseBranch != "main" {
		t.Errorf("Worktree.BaseBranch = %q, want %q", cfg.Worktree.BaseBranch, "main")
	}
	if cfg.Worktree.WorktreesDir != ".worktrees" {
		t.Errorf("Worktree.WorktreesDir = %q, want %q", cfg.Worktree.WorktreesDir, ".worktrees")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.HasRunner() {
		t.Error("default config should not have a runner")
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should validate, got %v", errs)
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
worktree:
  base_branch: develop
runners:
  default:
    kind: echo
  by_role:
    projectLead:
      kind: claude-code
      model: opus
quality:
  env_file: .env.test
  checks:
    - name: test
      cmd: ["go", "test", "./..."]
      timeout_seconds: 600
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Worktree.BaseBranch != "develop" {
		t.Errorf("BaseBranch = %q", cfg.Worktree.BaseBranch)
	}
	if cfg.Worktree.BranchPrefix != "otto" {
		t.Errorf("BranchPrefix default not applied: %q", cfg.Worktree.BranchPrefix)
	}
	if !cfg.HasRunner() {
		t.Error("expected runner to be configured")
	}
	if got := cfg.RunnerFor("projectLead"); got.Kind != "claude-code" || got.Model != "opus" {
		t.Errorf("RunnerFor(projectLead) = %+v", got)
	}
	if got := cfg.RunnerFor("task"); got.Kind != "echo" {
		t.Errorf("RunnerFor(task) = %+v", got)
	}
	if len(cfg.Quality.Checks) != 1 || cfg.Quality.Checks[0].Timeout() != 10*time.Minute {
		t.Errorf("Quality.Checks = %+v", cfg.Quality.Checks)
	}
	if cfg.Quality.EnvFile != ".env.test" {
		t.Errorf("Quality.EnvFile = %q", cfg.Quality.EnvFile)
	}
}

func TestArtifactRootDir(t *testing.T) {
	cfg := Default()
	if got := cfg.ArtifactRootDir("/repo"); got != filepath.Join("/repo", ".otto") {
		t.Errorf("ArtifactRootDir = %q", got)
	}
	cfg.Paths.ArtifactRoot = "/abs/root"
	if got := cfg.ArtifactRootDir("/repo"); got != "/abs/root" {
		t.Errorf("ArtifactRootDir absolute = %q", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "otto") {
		t.Errorf("ConfigDir = %q", got)
	}
	if !strings.HasSuffix(ConfigFile(), filepath.Join("otto", "config.yaml")) {
		t.Errorf("ConfigFile = %q", ConfigFile())
	}
}
