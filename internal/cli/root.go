package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "wordsync",
		Short: "CLI tool for the wordsync progress API",
		Long: `wordsync drives a running wordsyncd daemon: sign a player in, play
words, complete levels, spend currency and watch progress events as the
daemon reconciles them with the remote store.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.LoadPlayer(); err != nil {
				return err
			}
			client = NewClient(cfg.ServerURL, cfg.PlayerID)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: WORDSYNC_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.PlayerID, "player", cfg.PlayerID, "Player id (env: WORDSYNC_PLAYER)")
	rootCmd.PersistentFlags().StringVar(&cfg.PlayerFile, "player-file", cfg.PlayerFile, "File remembering the signed-in player (env: WORDSYNC_PLAYER_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVar(&cfg.Sync, "sync", cfg.Sync, "Wait for the remote write before returning")

	// Add subcommands
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newWordCmd())
	rootCmd.AddCommand(newBonusCmd())
	rootCmd.AddCommand(newCompleteCmd())
	rootCmd.AddCommand(newHintCmd())
	rootCmd.AddCommand(newRevealCmd())
	rootCmd.AddCommand(newSpendCmd())
	rootCmd.AddCommand(newCounterCmd())
	rootCmd.AddCommand(newFailureCmd())
	rootCmd.AddCommand(newResetUnitCmd())
	rootCmd.AddCommand(newFlushCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newHealthCmd())

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

// operationPath adds the sync query when --sync is set
func operationPath(path string) string {
	if cfg.Sync {
		return path + "?sync=true"
	}
	return path
}
