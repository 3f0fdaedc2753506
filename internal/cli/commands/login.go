package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/auth"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
)

type loginOptions struct {
	mfaCode        string
	rememberDevice bool
	deviceName     string
}

func newLoginCommand(o *options) *cobra.Command {
	lo := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username and password",
		Long: `Sign in with SRP. The password is read from HIVE_PASSWORD or prompted for.

When the account requires an SMS code it is taken from --mfa-code or prompted
for. A remembered device answers the device challenge automatically, and
--remember-device registers this machine after a successful sign-in so later
logins skip SMS.`,
		Example: `  # Interactive
  hivectl login -u user@example.com

  # Register this machine as a remembered device
  hivectl login -u user@example.com --remember-device --device-name laptop

  # Scripted
  HIVE_PASSWORD=secret hivectl login -u user@example.com --mfa-code 123456 -y`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, o, lo)
		},
	}

	cmd.Flags().StringVar(&lo.mfaCode, "mfa-code", "", "SMS code; prompted for when required and unset")
	cmd.Flags().BoolVar(&lo.rememberDevice, "remember-device", false, "Register this machine as a remembered device")
	cmd.Flags().StringVar(&lo.deviceName, "device-name", "", "Name for the remembered device (default: host name)")

	return cmd
}

// newRegisterDeviceCommand is login with --remember-device forced on.
func newRegisterDeviceCommand(o *options) *cobra.Command {
	lo := &loginOptions{rememberDevice: true}

	cmd := &cobra.Command{
		Use:   "register-device",
		Short: "Sign in and remember this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, o, lo)
		},
	}

	cmd.Flags().StringVar(&lo.mfaCode, "mfa-code", "", "SMS code; prompted for when required and unset")
	cmd.Flags().StringVar(&lo.deviceName, "device-name", "", "Name for the remembered device (default: host name)")

	return cmd
}

func runLogin(cmd *cobra.Command, o *options, lo *loginOptions) error {
	e, err := o.setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	p := newPrompter(cmd, o.nonInteractive)

	password := e.cfg.Password
	if password == "" {
		if password, err = p.Secret("Password"); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Authenticating %s with pool %s...\n", e.cfg.Username, e.pool.PoolID)

	res, err := e.session.Login(ctx, e.cfg.Username, password)
	if err != nil {
		return err
	}
	if res, err = completeChallenges(ctx, e, p, lo, res); err != nil {
		return err
	}

	if err := e.saveTokens(); err != nil {
		return err
	}

	if lo.rememberDevice {
		if err := rememberDevice(ctx, cmd, e, lo, res); err != nil {
			return err
		}
	}

	// Keep the resolved pool so later commands skip the bootstrap page.
	if err := e.cfg.SavePool(e.pool.PoolID, e.pool.ClientID); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to save config: %v\n", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Authentication successful. Tokens saved.")
	return nil
}

// completeChallenges answers SMS and device challenges until the session is
// authenticated.
func completeChallenges(ctx context.Context, e *env, p *prompter, lo *loginOptions, res *auth.Result) (*auth.Result, error) {
	var err error
	for res.State != auth.StateAuthenticated {
		if res.Challenge == nil {
			return nil, fmt.Errorf("login stopped in state %s without a challenge", res.State)
		}

		switch res.Challenge.Name {
		case cognito.ChallengeSMSMFA:
			code := lo.mfaCode
			lo.mfaCode = ""
			if code == "" {
				label := "SMS code"
				if dest := res.Challenge.Parameters[cognito.ParamCodeDeliveryDestination]; dest != "" {
					label = fmt.Sprintf("SMS code sent to %s", dest)
				}
				if code, err = p.Line(label); err != nil {
					return nil, err
				}
			}
			res, err = e.session.SMS2FA(ctx, code, res.Challenge)
		case cognito.ChallengeDeviceSRPAuth:
			res, err = e.session.DeviceLogin(ctx, res.Challenge)
			if auth.KindOf(err) == auth.KindInvalidDeviceAuthentication {
				e.logger.Warn("remembered device was rejected; run 'hivectl forget-device' and log in again",
					map[string]any{"error": err.Error()})
			}
		default:
			return nil, fmt.Errorf("unsupported challenge %s", res.Challenge.Name)
		}
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func rememberDevice(ctx context.Context, cmd *cobra.Command, e *env, lo *loginOptions, res *auth.Result) error {
	if res.NewDevice == nil {
		if d := e.session.Device(); d != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Device %s is already remembered.\n", d.Key)
			return nil
		}
		return fmt.Errorf("the provider did not offer a device to remember")
	}

	name := lo.deviceName
	if name == "" {
		name = e.cfg.DeviceName
	}

	device, err := e.session.RegisterDevice(ctx, *res.NewDevice, name)
	if err != nil {
		return err
	}
	if err := e.store.SaveDevice(e.pool.PoolID, e.cfg.Username, *device); err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Device %q remembered.\n", device.Name)
	return nil
}
