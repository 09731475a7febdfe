package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Sign players in and out",
	}

	cmd.AddCommand(newSessionStartCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionEndCmd())

	return cmd
}

func newSessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <player-id>",
		Short: "Sign a player in and wait for their progress to load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Session
			req := map[string]string{"player_id": args[0]}
			if err := client.Post("/api/v1/session", req, &result); err != nil {
				return err
			}

			if err := cfg.SavePlayer(result.PlayerID); err != nil {
				return fmt.Errorf("failed to save player: %w", err)
			}
			client.SetPlayer(result.PlayerID)

			output(cmd).Print(result)
			return nil
		},
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the signed-in player",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Session
			if err := client.Get("/api/v1/session", &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newSessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "Flush pending writes and sign out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete("/api/v1/session", nil); err != nil {
				return err
			}
			if err := cfg.ClearPlayer(); err != nil {
				return fmt.Errorf("failed to clear player: %w", err)
			}
			output(cmd).PrintMessage("Signed out")
			return nil
		},
	}
}
