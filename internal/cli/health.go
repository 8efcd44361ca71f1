package cli

import (
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rt.client.Health(cmd.Context())
			if err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
