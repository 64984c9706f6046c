package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/tdi/pkg/tdi/auth"
	"github.com/telekom/tdi/pkg/tdi/client"
	"github.com/telekom/tdi/pkg/tdi/output"
	"github.com/telekom/tdi/pkg/version"
)

func NewMeCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.formatWithJSONFlag(asJSON)
			if err != nil {
				return err
			}
			apiClient, err := rt.APIClient()
			if err != nil {
				return err
			}
			user, err := apiClient.Me(cmd.Context())
			if err != nil {
				if errors.Is(err, auth.ErrNotAuthenticated) {
					return fmt.Errorf("%w (%v)", auth.ErrNotAuthenticated, err)
				}
				return err
			}
			if format == output.FormatTable {
				output.WriteKeyValueTable(rt.Writer(), user)
				return nil
			}
			return output.WriteObject(rt.Writer(), format, user)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON (same as -o json)")
	return cmd
}

// APIClient builds a client carrying the stored bearer token. It fails with
// auth.ErrNotAuthenticated when nobody is logged in.
func (rt *runtimeState) APIClient() (*client.Client, error) {
	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, err
	}
	store, err := rt.TokenStore()
	if err != nil {
		return nil, err
	}
	token, err := store.BearerToken()
	if err != nil {
		return nil, err
	}
	timeout, err := rt.cfg.APITimeout()
	if err != nil {
		return nil, err
	}
	return client.New(
		client.WithServer(rt.cfg.API.Server),
		client.WithTLSConfig(rt.cfg.API.CAFile, rt.cfg.API.InsecureSkipTLS),
		client.WithToken(token),
		client.WithUserAgent(version.UserAgent()),
		client.WithTimeout(timeout),
	)
}

func (rt *runtimeState) formatWithJSONFlag(asJSON bool) (output.Format, error) {
	if asJSON {
		return output.FormatJSON, nil
	}
	return rt.OutputFormat()
}
