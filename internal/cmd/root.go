package cmd

import (
	"context"
	"strings"

	"github.com/Iron-Ham/otto/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "otto",
	Short: "Drive a ticket to a finished branch with a team of agents",
	Long: `Otto turns a ticket into working code on an isolated git worktree.
A project lead writes tickets, a tech lead plans and splits the work,
task agents implement each step and reviewers check it before the
branch is integrated with the base branch.

Run without arguments for an interactive menu.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runMenu,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/otto/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".otto")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/otto")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OTTO")
	// e.g., OTTO_WORKTREE_BASE_BRANCH for worktree.base_branch
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
