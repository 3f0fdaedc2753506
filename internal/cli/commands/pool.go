package commands

import (
	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/cli/output"
)

type poolReport struct {
	PoolID   string `json:"pool_id" yaml:"pool_id"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Region   string `json:"region" yaml:"region"`
}

func (r poolReport) Fields() []output.Field {
	return []output.Field{
		{Label: "Pool ID", Value: r.PoolID},
		{Label: "Client ID", Value: r.ClientID},
		{Label: "Region", Value: r.Region},
	}
}

func newPoolCommand(o *options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Show the user pool metadata",
		Long: `Show the pool ID, client ID and region. Values missing from the config are
resolved from the SSO bootstrap page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer, err := output.NewPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}

			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			newLogger(cmd, cfg).Debug("resolving pool", map[string]any{"bootstrap_url": cfg.BootstrapURL})

			info, err := resolvePool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printer.Print(poolReport{PoolID: info.PoolID, ClientID: info.ClientID, Region: info.Region})
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format: yaml, json or text")
	return cmd
}
