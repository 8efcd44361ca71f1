package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/model"
)

func newEconomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "economy",
		Short: "Currencies, inventory and purchases",
	}

	cmd.AddCommand(newEconomyShowCmd())
	cmd.AddCommand(newEconomyBuyCmd())
	cmd.AddCommand(newEconomyWatchCmd())
	cmd.AddCommand(newEconomyConfigCmd())

	return cmd
}

func newEconomyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show currencies and inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireSession(cmd.Context()); err != nil {
				return err
			}

			snapshot, _ := rt.session.Cache().Snapshot()
			output(cmd).Print(*economyView(snapshot))
			return nil
		},
	}
}

func newEconomyBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <purchase-id>",
		Short: "Make a virtual purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireSession(cmd.Context()); err != nil {
				return err
			}

			snapshot, err := rt.session.Purchase(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			output(cmd).Print(*economyView(snapshot))
			return nil
		},
	}
}

func newEconomyWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream economy updates",
		Long: `Connect to the player's economy event stream and print every update
(starter grants and purchases, including those made from other devices).

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireSession(cmd.Context()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := output(cmd)
			if cfg.Output != "json" {
				out.PrintMessage("Watching economy updates, press Ctrl+C to stop")
			}

			token := rt.engine.Status().Identity.SessionToken
			err := rt.client.StreamEconomy(ctx, token, func(update model.EconomyUpdate) {
				out.Print(EconomyEventView{
					Time:    eventTime(update),
					Reason:  string(update.Reason),
					Economy: response.EconomyFromModel(update.Snapshot),
				})
			})
			if err != nil {
				return err
			}
			if cfg.Output != "json" {
				out.PrintMessage("Disconnected")
			}
			return nil
		},
	}
}

func eventTime(update model.EconomyUpdate) time.Time {
	if update.Timestamp.IsZero() {
		return time.Now()
	}
	return update.Timestamp
}

func newEconomyConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the economy configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			econ, err := rt.client.Load(cmd.Context())
			if err != nil {
				return err
			}

			output(cmd).Print(response.EconomyConfig{Config: econ})
			return nil
		},
	}
}
