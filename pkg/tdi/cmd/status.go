package cmd

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"

	"github.com/telekom/tdi/pkg/tdi/auth"
	"github.com/telekom/tdi/pkg/tdi/output"
)

type authStatus struct {
	Authenticated bool      `json:"authenticated" yaml:"authenticated"`
	User          string    `json:"user,omitempty" yaml:"user,omitempty"`
	ClientID      string    `json:"clientID,omitempty" yaml:"clientID,omitempty"`
	Scopes        []string  `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Expiry        time.Time `json:"expiry,omitempty" yaml:"expiry,omitempty"`
	Expired       bool      `json:"expired,omitempty" yaml:"expired,omitempty"`
	Storage       string    `json:"storage" yaml:"storage"`
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a token is stored and whom it belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			store, err := rt.TokenStore()
			if err != nil {
				return err
			}
			status := authStatus{Storage: string(store.StorageMode)}
			cred, err := store.Load()
			switch {
			case errors.Is(err, auth.ErrNotAuthenticated):
			case err != nil:
				return err
			default:
				status.Authenticated = true
				status.User = identityFromToken(cred.AccessToken.IDToken, cred.AccessToken.AccessToken)
				status.ClientID = cred.ClientID
				status.Scopes = cred.AccessToken.Scopes
				status.Expiry = cred.AccessToken.Expiry
				status.Expired = cred.AccessToken.IsExpired()
			}

			if format != output.FormatTable {
				return output.WriteObject(rt.Writer(), format, status)
			}
			if !status.Authenticated {
				rt.printf("Not authenticated\n")
				return nil
			}
			user := status.User
			if user == "" {
				user = "unknown user"
			}
			rt.printf("Authenticated as %s\n", user)
			if len(status.Scopes) > 0 {
				rt.printf("Scopes: %s\n", strings.Join(status.Scopes, " "))
			}
			switch {
			case status.Expiry.IsZero():
			case status.Expired:
				rt.printf("Token expired at %s; run 'tdi login' again\n", status.Expiry.UTC().Format(time.RFC3339))
			default:
				rt.printf("Token expires at %s\n", status.Expiry.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

// identityFromToken reads the user from the first token that parses as a JWT.
// Signatures are not verified; the result is only displayed.
func identityFromToken(tokens ...string) string {
	parser := jwt.Parser{}
	for _, token := range tokens {
		if token == "" {
			continue
		}
		claims := jwt.MapClaims{}
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			continue
		}
		for _, key := range []string{"email", "preferred_username", "upn", "unique_name", "sub"} {
			if v, ok := claims[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}
