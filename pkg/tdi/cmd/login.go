package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/tdi/pkg/tdi/auth"
	"github.com/telekom/tdi/pkg/tdi/config"
)

func NewLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			loginCfg, err := rt.LoginConfig()
			if err != nil {
				return err
			}
			store, err := rt.TokenStore()
			if err != nil {
				return err
			}
			exchanger, err := rt.Exchanger()
			if err != nil {
				return err
			}
			browser := rt.browser
			if browser == nil {
				browser = auth.SystemBrowser{Stdout: rt.ErrWriter(), Stderr: rt.ErrWriter(), Disabled: rt.noBrowser}
			}

			authenticator := &auth.Authenticator{
				Config:    loginCfg,
				Browser:   browser,
				Exchanger: exchanger,
				Store:     store,
				Out:       rt.Writer(),
				Log:       rt.Logger(),
			}
			cred, err := authenticator.Login(cmd.Context())
			if err != nil {
				return err
			}
			rt.printf("tdi: logged in, and stored token for future use.\n")
			if !cred.AccessToken.Expiry.IsZero() {
				rt.printf("Token expires at %s\n", cred.AccessToken.Expiry.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := rt.TokenStore()
			if err != nil {
				return err
			}
			if err := store.Delete(); err != nil {
				return err
			}
			rt.printf("Logged out\n")
			return nil
		},
	}
}

// LoginConfig turns the loaded configuration into the input of one login
// attempt. Configuration problems surface here, before any port is bound.
func (rt *runtimeState) LoginConfig() (auth.LoginConfig, error) {
	if rt.cfg == nil {
		return auth.LoginConfig{}, fmt.Errorf("%w: config not loaded", auth.ErrConfiguration)
	}
	if err := rt.cfg.Validate(); err != nil {
		return auth.LoginConfig{}, err
	}
	p := rt.cfg.Provider
	secret, err := p.ResolveClientSecret()
	if err != nil {
		return auth.LoginConfig{}, err
	}
	timeout, err := rt.cfg.CallbackTimeout()
	if err != nil {
		return auth.LoginConfig{}, err
	}
	if rt.timeout > 0 {
		timeout = rt.timeout
	}
	redirectHost := rt.cfg.Callback.RedirectHost
	if redirectHost == "" {
		redirectHost = config.DefaultRedirectHost
	}
	return auth.LoginConfig{
		Provider: auth.ProviderConfig{
			Authority:       p.Authority,
			AuthorizeURL:    p.AuthorizeURL,
			TokenURL:        p.TokenURL,
			ClientID:        p.ClientID,
			ClientSecret:    secret,
			Scopes:          p.Scopes,
			AuthStyle:       p.AuthStyle,
			PKCE:            !p.DisablePKCE,
			CAFile:          p.CAFile,
			InsecureSkipTLS: p.InsecureSkipTLS,
			ExtraAuthParams: p.ExtraAuthParams,
		},
		ListenAddr:   rt.cfg.CallbackAddr(),
		CallbackPath: rt.cfg.CallbackPath(),
		RedirectHost: redirectHost,
		Timeout:      timeout,
	}, nil
}
