package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg *Config
	rt  *runtime
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "playerhub",
		Short: "Game client for the playerhub API",
		Long: `playerhub is a command line game client for the playerhub API.

It signs in anonymously or with an identity provider, links providers to one
player, keeps the session in a local file and shows or spends the player's
currencies and inventory.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			rt = newRuntime(cfg, cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt != nil {
				rt.Close()
			}
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: PLAYERHUB_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.SessionFile, "session-file", cfg.SessionFile, "Session file path (env: PLAYERHUB_SESSION_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newPlayerCmd())
	rootCmd.AddCommand(newEconomyCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newDevCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func output(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout())
}
