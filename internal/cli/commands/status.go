package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/cli/output"
)

type statusReport struct {
	Username  string        `json:"username" yaml:"username"`
	PoolID    string        `json:"pool_id" yaml:"pool_id"`
	ClientID  string        `json:"client_id" yaml:"client_id"`
	State     string        `json:"state" yaml:"state"`
	Tokens    *tokenStatus  `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Device    *deviceStatus `json:"device,omitempty" yaml:"device,omitempty"`
	StorePath string        `json:"store_path" yaml:"store_path"`
	Accounts  []string      `json:"stored_accounts,omitempty" yaml:"stored_accounts,omitempty"`
}

func (r statusReport) Fields() []output.Field {
	fields := []output.Field{
		{Label: "Username", Value: r.Username},
		{Label: "Pool ID", Value: r.PoolID},
		{Label: "Client ID", Value: r.ClientID},
		{Label: "State", Value: r.State},
	}
	if t := r.Tokens; t != nil {
		expires := t.ExpiresAt.Format(time.RFC3339)
		if t.Expired {
			expires += " (expired)"
		}
		fields = append(fields,
			output.Field{Label: "Issued", Value: t.IssuedAt.Format(time.RFC3339)},
			output.Field{Label: "Expires", Value: expires},
			output.Field{Label: "Refresh token", Value: strconv.FormatBool(t.HasRefreshToken)})
	}
	if d := r.Device; d != nil {
		fields = append(fields,
			output.Field{Label: "Device", Value: d.Key},
			output.Field{Label: "Device name", Value: d.Name})
	}
	return append(fields,
		output.Field{Label: "Store", Value: r.StorePath},
		output.Field{Label: "Stored accounts", Value: strings.Join(r.Accounts, ", ")})
}

type tokenStatus struct {
	IssuedAt        time.Time `json:"issued_at" yaml:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at" yaml:"expires_at"`
	Expired         bool      `json:"expired" yaml:"expired"`
	HasRefreshToken bool      `json:"has_refresh_token" yaml:"has_refresh_token"`
}

type deviceStatus struct {
	Key      string `json:"key" yaml:"key"`
	GroupKey string `json:"group_key" yaml:"group_key"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
}

func newStatusCommand(o *options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session for the account",
		Long:  "Show the stored tokens and remembered device. No authentication request is made.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer, err := output.NewPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}

			e, err := o.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			report := statusReport{
				Username:  e.cfg.Username,
				PoolID:    e.pool.PoolID,
				ClientID:  e.pool.ClientID,
				State:     e.session.State().String(),
				StorePath: e.store.Path(),
			}
			if tokens, ok := e.session.Tokens(); ok {
				report.Tokens = &tokenStatus{
					IssuedAt:        tokens.IssuedAt,
					ExpiresAt:       tokens.ExpiresAt(),
					Expired:         tokens.Expired(time.Now()),
					HasRefreshToken: tokens.RefreshToken != "",
				}
			}
			if d := e.session.Device(); d != nil {
				report.Device = &deviceStatus{Key: d.Key, GroupKey: d.GroupKey, Name: d.Name}
			}

			if report.Accounts, err = e.store.Usernames(e.pool.PoolID); err != nil {
				return err
			}

			return printer.Print(report)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format: yaml, json or text")
	return cmd
}
