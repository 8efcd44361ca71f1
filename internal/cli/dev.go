package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/playerhub/internal/services/identity"
)

func newDevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "dev",
		Short:  "Development helpers",
		Hidden: true,
	}

	cmd.AddCommand(newDevTokenCmd())

	return cmd
}

func newDevTokenCmd() *cobra.Command {
	var (
		secret string
		issuer string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a provider access token signed with a development secret",
		Long: `Issue a provider access token for subject, signed with the same secret the
server is configured with (PLAYERHUB_PROVIDER_*_SECRET). Use it with
'playerhub auth provider <kind> --token'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or PLAYERHUB_DEV_PROVIDER_SECRET is required")
			}

			token, err := identity.IssueProviderToken([]byte(secret), issuer, args[0], time.Now(), ttl)
			if err != nil {
				return err
			}

			output(cmd).PrintMessage(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("PLAYERHUB_DEV_PROVIDER_SECRET"), "Provider signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", getEnvOrDefault("PLAYERHUB_PROVIDER_ISSUER", "playerhub"), "Token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
