package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newForgetDeviceCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "forget-device",
		Short: "Forget the remembered device",
		Long: `Remove the remembered device from the identity provider and from the
local credential store. The next login will require an SMS code again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := o.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			device := e.session.Device()
			if device == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "No remembered device.")
				return nil
			}

			if _, err := e.session.EnsureFresh(cmd.Context()); err != nil {
				return err
			}
			if err := e.saveTokens(); err != nil {
				return err
			}
			if err := e.session.ForgetDevice(cmd.Context()); err != nil {
				return err
			}
			if err := e.store.DeleteDevice(e.pool.PoolID, e.cfg.Username); err != nil {
				return fmt.Errorf("failed to delete device: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Device %s forgotten.\n", device.Key)
			return nil
		},
	}
}
