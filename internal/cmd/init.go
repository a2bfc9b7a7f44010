package cmd

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/worktree"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize otto in the current repository",
	Long: `Initialize otto in the current git repository.
This creates the .otto artifact directory and adds it and the worktrees
directory to .gitignore. Other commands do this on first use.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to get current directory")
	}
	cfg, err := config.Load()
	if err != nil {
		return configError(err)
	}

	// Find the git repository root (may be in a parent directory)
	nop := logging.NopLogger()
	adapter := worktree.NewGitAdapter(worktree.NewGit(execx.New(nil, nop), nop))
	repoRoot, err := adapter.MainRepoPath(cmd.Context(), cwd)
	if err != nil {
		return errors.NewValidationError("not a git repository (or any parent up to mount point)").WithCause(err)
	}

	paths, worktreesDir, err := artifacts.EnsureRepoSetup(repoRoot, cfg.Paths.ArtifactRoot, cfg.Worktree.WorktreesDir)
	if err != nil {
		return errors.Wrap(err, "failed to initialize")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "otto initialized successfully!")
	fmt.Fprintf(out, "Artifact directory: %s\n", paths.Root)
	fmt.Fprintf(out, "Worktrees directory: %s\n", worktreesDir)
	if !cfg.HasRunner() {
		fmt.Fprintln(out, warnStyle.Render("No runner configured yet. Run 'otto config init' to create a config file."))
	}
	return nil
}
