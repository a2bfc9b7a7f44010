// Package artifacts resolves the on-disk layout otto keeps under the main
// repository: the artifact root, per-run directories and the files each
// task produces.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/otto/internal/state"
)

// DefaultRoot is the artifact root relative to the main repository.
const DefaultRoot = ".otto"

// DefaultWorktreesDir is where run worktrees are created.
const DefaultWorktreesDir = ".worktrees"

// Well-known file names inside a run directory.
const (
	PlanFile          = "plan.md"
	DecisionCardsFile = "decision-cards.json"
	FinalReportFile   = "final-report.md"
)

// Paths is the resolved artifact layout.
type Paths struct {
	Root     string
	Tickets  string
	Runs     string
	Logs     string
	States   string
	Locks    string
	Sessions string
}

// Resolve returns the layout for root resolved against mainRepo. An empty
// root uses DefaultRoot.
func Resolve(mainRepo, root string) Paths {
	if root == "" {
		root = DefaultRoot
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(mainRepo, root)
	}
	root = filepath.Clean(root)
	return Paths{
		Root:     root,
		Tickets:  filepath.Join(root, state.TicketsDir),
		Runs:     filepath.Join(root, state.RunsDir),
		Logs:     filepath.Join(root, state.LogsDir),
		States:   filepath.Join(root, state.StatesDir),
		Locks:    filepath.Join(root, state.LocksDir),
		Sessions: filepath.Join(root, state.SessionsDir),
	}
}

// ensureDirs creates every directory of the layout.
func (p Paths) ensureDirs() error {
	for _, dir := range []string{p.Tickets, p.Runs, p.Logs, p.States, p.Locks, p.Sessions} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureRepoSetup prepares a repository for otto: it creates the artifact
// layout and the worktrees directory and adds both to .gitignore.
func EnsureRepoSetup(mainRepo, root, worktreesDir string) (Paths, string, error) {
	paths := Resolve(mainRepo, root)
	if err := paths.ensureDirs(); err != nil {
		return Paths{}, "", err
	}
	if err := ensureGitignoreHasDir(mainRepo, paths.Root); err != nil {
		return Paths{}, "", err
	}

	if worktreesDir == "" {
		worktreesDir = DefaultWorktreesDir
	}
	if !filepath.IsAbs(worktreesDir) {
		worktreesDir = filepath.Join(mainRepo, worktreesDir)
	}
	if err := os.MkdirAll(worktreesDir, 0o755); err != nil {
		return Paths{}, "", fmt.Errorf("failed to create worktrees dir: %w", err)
	}
	if err := ensureGitignoreHasDir(mainRepo, worktreesDir); err != nil {
		return Paths{}, "", err
	}
	return paths, worktreesDir, nil
}

// ensureGitignoreHasDir appends "<dir>/" to mainRepo/.gitignore unless an
// equivalent pattern is already present. Directories outside the
// repository are ignored.
func ensureGitignoreHasDir(mainRepo, dir string) error {
	rel, ok := relInside(mainRepo, dir)
	if !ok {
		return nil
	}
	rel = filepath.ToSlash(rel)
	line := rel + "/"
	gitignore := filepath.Join(mainRepo, ".gitignore")

	existing, err := os.ReadFile(gitignore)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read .gitignore: %w", err)
	}

	equivalents := map[string]bool{
		line:              true,
		rel:               true,
		rel + "/**":       true,
		"/" + rel + "/":   true,
		"/" + rel:         true,
		"/" + rel + "/**": true,
	}
	content := string(existing)
	for _, l := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if equivalents[strings.TrimSpace(l)] {
			return nil
		}
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if content != "" && !strings.HasSuffix(content, "\n\n") {
		content += "\n"
	}
	content += line + "\n"

	if err := os.WriteFile(gitignore, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return nil
}

// ToWorktreePath maps a file under mainRepo to the same relative location
// inside worktree. It reports false when file is not under mainRepo.
func ToWorktreePath(mainRepo, worktree, file string) (string, bool) {
	rel, ok := relInside(mainRepo, file)
	if !ok {
		return "", false
	}
	return filepath.Join(worktree, rel), true
}

func relInside(base, target string) (string, bool) {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == "" || filepath.IsAbs(rel) {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// PlanPath returns the plan file for runDir.
func PlanPath(runDir string) string { return filepath.Join(runDir, PlanFile) }

// DecisionCardsPath returns the decision cards document for runDir.
func DecisionCardsPath(runDir string) string { return filepath.Join(runDir, DecisionCardsFile) }

// FinalReportPath returns the final report for runDir.
func FinalReportPath(runDir string) string { return filepath.Join(runDir, FinalReportFile) }
