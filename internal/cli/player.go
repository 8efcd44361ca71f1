package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/playerhub/internal/api/response"
)

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Player profile commands",
	}

	cmd.AddCommand(newPlayerShowCmd())
	cmd.AddCommand(newPlayerNameCmd())

	return cmd
}

func newPlayerShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the player's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireSession(cmd.Context()); err != nil {
				return err
			}

			profile, _ := rt.session.Profile()
			output(cmd).Print(response.ProfileFromModel(profile))
			return nil
		},
	}
}

func newPlayerNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name <name>",
		Short: "Set the display name (3-16 letters or digits)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireSession(cmd.Context()); err != nil {
				return err
			}

			profile, err := rt.session.Rename(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			output(cmd).Print(response.ProfileFromModel(profile))
			return nil
		},
	}
}
