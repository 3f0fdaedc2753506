package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCommand(o *options) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Print a valid token, refreshing first if needed",
		Example: `  curl -H "Authorization: $(hivectl token)" https://beekeeper.hivehome.com/1.0/products`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := o.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			refreshed := e.session.NeedsRefresh(time.Now())
			tokens, err := e.session.EnsureFresh(cmd.Context())
			if err != nil {
				return err
			}
			if refreshed {
				if err := e.saveTokens(); err != nil {
					return err
				}
			}

			var token string
			switch kind {
			case "id":
				token = tokens.IDToken
			case "access":
				token = tokens.AccessToken
			case "refresh":
				token = tokens.RefreshToken
			default:
				return fmt.Errorf("invalid token kind %q: must be id, access or refresh", kind)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "id", "Token to print: id, access or refresh")
	return cmd
}
