package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/model"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, link providers and manage the saved session",
	}

	cmd.AddCommand(newAuthAnonymousCmd())
	cmd.AddCommand(newAuthResumeCmd())
	cmd.AddCommand(newAuthProviderCmd())
	cmd.AddCommand(newAuthUnlinkCmd())
	cmd.AddCommand(newAuthSignOutCmd())
	cmd.AddCommand(newAuthWhoamiCmd())
	cmd.AddCommand(newAuthDeleteCmd())

	return cmd
}

// signInView describes the signed-in player after the automatic bootstrap
func signInView(outcome string) SignInView {
	view := SignInView{
		Outcome:     outcome,
		Status:      statusView(rt.engine.Status()),
		IsNewPlayer: rt.session.IsNewPlayer(),
	}
	if profile, ok := rt.session.Profile(); ok {
		p := response.ProfileFromModel(profile)
		view.Profile = &p
	}
	if snapshot, ok := rt.session.Cache().Snapshot(); ok {
		view.Economy = economyView(snapshot)
	}
	return view
}

func newAuthAnonymousCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "anonymous",
		Short: "Sign in without a provider, resuming the saved anonymous session if there is one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := rt.engine.SignInAnonymously(cmd.Context()); err != nil {
				return err
			}
			if err := rt.session.BootstrapErr(); err != nil {
				return err
			}

			output(cmd).Print(signInView(""))
			return nil
		},
	}
}

func newAuthResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			resumed, err := rt.engine.Start(cmd.Context())
			if err != nil {
				return err
			}
			if !resumed {
				output(cmd).PrintMessage("No saved session")
				return nil
			}
			if err := rt.session.BootstrapErr(); err != nil {
				return err
			}

			output(cmd).Print(signInView(""))
			return nil
		},
	}
}

func newAuthProviderCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "provider <kind>",
		Short: "Sign in with a provider, or link it to the signed-in player",
		Long: `Sign in with an identity provider. If a session is saved, the provider is
linked to that player instead; if it is already linked nothing changes.

Kinds: platform_account, social, console_store. The access token is read from
--token or PLAYERHUB_<KIND>_TOKEN.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseProviderKind(args[0])
			if err != nil {
				return err
			}
			g, err := rt.gateway(kind, token)
			if err != nil {
				return err
			}

			if err := rt.resume(cmd.Context()); err != nil {
				return err
			}
			outcome, err := rt.engine.SignInOrLinkWithProvider(cmd.Context(), g)
			if err != nil {
				return err
			}
			if err := rt.session.BootstrapErr(); err != nil {
				return err
			}

			output(cmd).Print(signInView(outcome.String()))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Provider access token")

	return cmd
}

func newAuthUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <kind>",
		Short: "Unlink a provider from the signed-in player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseProviderKind(args[0])
			if err != nil {
				return err
			}
			g, err := rt.gateway(kind, "")
			if err != nil {
				return err
			}
			if err := rt.requireSession(cmd.Context()); err != nil {
				return err
			}

			if _, err := rt.engine.UnlinkProvider(cmd.Context(), g); err != nil {
				return err
			}

			output(cmd).Print(statusView(rt.engine.Status()))
			return nil
		},
	}
}

func newAuthSignOutCmd() *cobra.Command {
	var clearSession bool

	cmd := &cobra.Command{
		Use:   "sign-out",
		Short: "Sign out",
		Long: `Sign out. Without --clear the saved session is kept and 'auth resume' or any
later command continues as the same player. With --clear the session is ended on
the server and the session file is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.resume(cmd.Context()); err != nil && clearSession {
				// Clearing must work even when the server is unreachable
				rt.logger.Warn("could not resume session before sign-out", "error", err)
			} else if err != nil {
				return err
			}

			if err := rt.engine.SignOut(cmd.Context(), clearSession); err != nil {
				return err
			}

			msg := "Signed out"
			if clearSession {
				msg = "Signed out and cleared the saved session"
			}
			output(cmd).PrintMessage(msg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearSession, "clear", false, "Also end the session on the server and remove the session file")

	return cmd
}

func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in player",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.resume(cmd.Context()); err != nil {
				return err
			}

			output(cmd).Print(statusView(rt.engine.Status()))
			return nil
		},
	}
}

func newAuthDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the signed-in player and all their data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the account without --yes")
			}
			if err := rt.requireSession(cmd.Context()); err != nil {
				return err
			}

			playerID := rt.engine.Status().Identity.PlayerID
			if err := rt.engine.DeleteAccount(cmd.Context()); err != nil {
				return err
			}

			output(cmd).PrintMessage(fmt.Sprintf("Deleted player %s", playerID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")

	return cmd
}
