package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ProviderConfig is the static OAuth2 client registration. It is built once
// at startup and handed to the login flow explicitly.
type ProviderConfig struct {
	Authority       string
	AuthorizeURL    string
	TokenURL        string
	ClientID        string
	ClientSecret    string
	Scopes          []string
	AuthStyle       string
	PKCE            bool
	CAFile          string
	InsecureSkipTLS bool
	ExtraAuthParams map[string]string
}

// Session carries everything one login attempt needs. It is never persisted.
type Session struct {
	ClientID     string
	Scopes       []string
	RedirectURI  string
	AuthorizeURL string
	TokenURL     string
	State        string

	verifier string
	extra    map[string]string
	oauth    oauth2.Config
}

// ResolveEndpoint returns the provider endpoints, discovering them through
// OIDC when only an authority is configured.
func ResolveEndpoint(ctx context.Context, cfg ProviderConfig, httpClient *http.Client) (oauth2.Endpoint, error) {
	endpoint := oauth2.Endpoint{
		AuthURL:   cfg.AuthorizeURL,
		TokenURL:  cfg.TokenURL,
		AuthStyle: authStyle(cfg.AuthStyle),
	}
	if endpoint.AuthURL != "" && endpoint.TokenURL != "" {
		return endpoint, nil
	}
	if cfg.Authority == "" {
		return oauth2.Endpoint{}, fmt.Errorf("%w: authority or authorize and token URLs are required", ErrConfiguration)
	}
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	provider, err := oidc.NewProvider(ctx, strings.TrimRight(cfg.Authority, "/"))
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("%w: failed to discover OIDC provider: %v", ErrConfiguration, err)
	}
	discovered := provider.Endpoint()
	if endpoint.AuthURL == "" {
		endpoint.AuthURL = discovered.AuthURL
	}
	if endpoint.TokenURL == "" {
		endpoint.TokenURL = discovered.TokenURL
	}
	return endpoint, nil
}

// NewSession validates the static configuration and prepares a fresh state
// and PKCE verifier.
func NewSession(cfg ProviderConfig, endpoint oauth2.Endpoint, redirectURI string) (*Session, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: client-id is required", ErrConfiguration)
	}
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		return nil, fmt.Errorf("%w: authorize and token URLs are required", ErrConfiguration)
	}
	if _, err := url.ParseRequestURI(endpoint.AuthURL); err != nil {
		return nil, fmt.Errorf("%w: invalid authorize URL: %v", ErrConfiguration, err)
	}
	if u, err := url.Parse(redirectURI); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect URI %q", ErrConfiguration, redirectURI)
	}
	scopes := normalizeScopes(cfg.Scopes)
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: at least one scope is required", ErrConfiguration)
	}

	s := &Session{
		ClientID:     cfg.ClientID,
		Scopes:       scopes,
		RedirectURI:  redirectURI,
		AuthorizeURL: endpoint.AuthURL,
		TokenURL:     endpoint.TokenURL,
		State:        uuid.NewString(),
		extra:        cfg.ExtraAuthParams,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
		},
	}
	if cfg.PKCE {
		s.verifier = oauth2.GenerateVerifier()
	}
	return s, nil
}

// AuthCodeURL is the URL the browser must visit.
func (s *Session) AuthCodeURL() string {
	var opts []oauth2.AuthCodeOption
	if s.verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(s.verifier))
	}
	for k, v := range s.extra {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return s.oauth.AuthCodeURL(s.State, opts...)
}

func normalizeScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	return out
}

func authStyle(style string) oauth2.AuthStyle {
	switch style {
	case "params":
		return oauth2.AuthStyleInParams
	case "header":
		return oauth2.AuthStyleInHeader
	default:
		return oauth2.AuthStyleAutoDetect
	}
}

// RedirectURI builds the redirect URI registered with the provider for a
// listener bound to addr.
func RedirectURI(host string, addr string, path string) (string, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid listener address %q: %w", addr, err)
	}
	if host == "" {
		host = "localhost"
	}
	u := url.URL{Scheme: "http", Host: host + ":" + port, Path: path}
	return u.String(), nil
}
