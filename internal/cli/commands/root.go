// Package commands provides the hivectl command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/config"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath     string
	flags          config.Flags
	nonInteractive bool
}

// NewRootCommand builds the hivectl command tree.
func NewRootCommand(version string) *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "hivectl",
		Short: "Sign in to Hive SSO and manage remembered devices",
		Long: `hivectl authenticates against the Hive SSO identity provider with SRP,
answers SMS and remembered-device challenges, and keeps tokens fresh.

Tokens and device secrets are kept in a local credential store so later
invocations can refresh instead of signing in again.`,
		Version:      version,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Config file (default <user config dir>/hiveauth/config.yaml)")
	pf.StringVarP(&o.flags.Username, "username", "u", "", "Account username (email)")
	pf.StringVar(&o.flags.PoolID, "pool-id", "", "User pool ID; resolved from the bootstrap page when unset")
	pf.StringVar(&o.flags.ClientID, "client-id", "", "App client ID; resolved from the bootstrap page when unset")
	pf.StringVar(&o.flags.Region, "region", "", "Provider region; derived from the pool ID when unset")
	pf.StringVar(&o.flags.Endpoint, "endpoint", "", "Override the provider endpoint URL")
	pf.StringVar(&o.flags.Timeout, "timeout", "", "Per-request timeout (e.g. 10s)")
	pf.StringVar(&o.flags.StorePath, "store", "", "Credential store path")
	pf.StringVar(&o.flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&o.flags.LogFormat, "log-format", "", "Log format: human or json")
	pf.BoolVarP(&o.nonInteractive, "non-interactive", "y", false, "Never prompt; fail when input is missing")

	root.AddCommand(
		newLoginCommand(o),
		newRegisterDeviceCommand(o),
		newForgetDeviceCommand(o),
		newRefreshCommand(o),
		newTokenCommand(o),
		newGetCommand(o),
		newLogoutCommand(o),
		newStatusCommand(o),
		newPoolCommand(o),
	)

	return root
}
