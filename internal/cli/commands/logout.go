package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/store"
)

func newLogoutCommand(o *options) *cobra.Command {
	var forgetDevice bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Delete stored tokens",
		Long: `Delete the stored tokens for the account. The remembered device is kept
unless --forget-device is given, in which case it is deleted locally only;
use 'hivectl forget-device' to also remove it from the identity provider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireUsername(); err != nil {
				return err
			}
			if cfg.PoolID == "" {
				return fmt.Errorf("pool_id is not known: nothing stored to delete")
			}

			storePath, err := cfg.GetStorePath()
			if err != nil {
				return err
			}
			st, err := store.Open(storePath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.DeleteTokens(cfg.PoolID, cfg.Username); err != nil {
				return fmt.Errorf("failed to delete tokens: %w", err)
			}
			if forgetDevice {
				if err := st.DeleteDevice(cfg.PoolID, cfg.Username); err != nil {
					return fmt.Errorf("failed to delete device: %w", err)
				}
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Logged out.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&forgetDevice, "forget-device", false, "Also delete the remembered device from the local store")
	return cmd
}
