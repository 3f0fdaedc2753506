package commands

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/auth"
)

func newGetCommand(o *options) *cobra.Command {
	var (
		useAccess bool
		scheme    string
	)

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a URL with the session's token attached",
		Long: `Send a GET request with the Authorization header set from the stored session,
refreshing expired tokens first. The response body is written to stdout.`,
		Example: `  hivectl get https://beekeeper.hivehome.com/1.0/products
  hivectl get --access-token --scheme Bearer https://api.example.com/me`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if scheme == "" {
				scheme = e.cfg.AuthScheme
			}
			transport := auth.NewTransport(e.session, nil)
			transport.Scheme = scheme
			if useAccess {
				transport.Token = auth.UseAccessToken
			}

			timeout, _ := e.cfg.GetTimeout()
			hc := &http.Client{Transport: transport, Timeout: timeout}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, args[0], nil)
			if err != nil {
				return fmt.Errorf("invalid url: %w", err)
			}

			resp, err := hc.Do(req)
			// Save whatever the transport refreshed, even if the request itself failed.
			if saveErr := e.saveTokens(); saveErr != nil {
				e.logger.Warn("failed to save tokens", map[string]any{"error": saveErr.Error()})
			}
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("request failed: %s", resp.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useAccess, "access-token", false, "Send the access token instead of the ID token")
	cmd.Flags().StringVar(&scheme, "scheme", "", "Authorization scheme prefix, e.g. Bearer (default: raw token)")
	return cmd
}
