package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/auth"
)

func newRefreshCommand(o *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh stored tokens",
		Long: `Exchange the stored refresh token for new tokens. Tokens that have not
expired are left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := o.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			var tokens auth.TokenBundle
			if force {
				tokens, err = e.session.Refresh(cmd.Context())
			} else {
				tokens, err = e.session.EnsureFresh(cmd.Context())
			}
			if err != nil {
				if auth.KindOf(err) == auth.KindTokenRefreshFailed {
					return fmt.Errorf("%w; run 'hivectl login' again", err)
				}
				return err
			}

			if err := e.saveTokens(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Tokens valid until %s.\n", tokens.ExpiresAt().Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Refresh even if the tokens have not expired")
	return cmd
}
