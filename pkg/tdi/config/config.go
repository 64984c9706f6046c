package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"

	DefaultAuthorizeURL    = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	DefaultTokenURL        = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	DefaultAPIServer       = "https://graph.microsoft.com/v1.0"
	DefaultCallbackHost    = "127.0.0.1"
	DefaultCallbackPort    = 8000
	DefaultCallbackPath    = "/redirect"
	DefaultRedirectHost    = "localhost"
	DefaultCallbackTimeout = 5 * time.Minute

	TokenStorageFile     = "file"
	TokenStorageKeychain = "keychain"
)

// ErrInvalid marks static configuration problems. They are reported at
// startup and are never retryable.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Version  string   `yaml:"version"`
	Provider Provider `yaml:"provider"`
	Callback Callback `yaml:"callback,omitempty"`
	API      API      `yaml:"api,omitempty"`
	Settings Settings `yaml:"settings,omitempty"`
}

// Provider describes the OAuth2 client registration. When Authority is set and
// the explicit endpoints are empty, endpoints are discovered via OIDC.
type Provider struct {
	Authority        string            `yaml:"authority,omitempty"`
	AuthorizeURL     string            `yaml:"authorize-url,omitempty"`
	TokenURL         string            `yaml:"token-url,omitempty"`
	ClientID         string            `yaml:"client-id"`
	ClientSecret     string            `yaml:"client-secret,omitempty"`
	ClientSecretEnv  string            `yaml:"client-secret-env,omitempty"`
	ClientSecretFile string            `yaml:"client-secret-file,omitempty"`
	Scopes           []string          `yaml:"scopes,omitempty"`
	AuthStyle        string            `yaml:"auth-style,omitempty"`
	DisablePKCE      bool              `yaml:"disable-pkce,omitempty"`
	CAFile           string            `yaml:"ca-file,omitempty"`
	InsecureSkipTLS  bool              `yaml:"insecure-skip-tls-verify,omitempty"`
	ExtraAuthParams  map[string]string `yaml:"extra-auth-params,omitempty"`
}

// Callback configures the loopback listener that receives the redirect.
type Callback struct {
	Host         string `yaml:"host,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	Path         string `yaml:"path,omitempty"`
	RedirectHost string `yaml:"redirect-host,omitempty"`
	Timeout      string `yaml:"timeout,omitempty"`
}

type API struct {
	Server          string `yaml:"server,omitempty"`
	Timeout         string `yaml:"timeout,omitempty"`
	CAFile          string `yaml:"ca-file,omitempty"`
	InsecureSkipTLS bool   `yaml:"insecure-skip-tls-verify,omitempty"`
}

type Settings struct {
	OutputFormat string `yaml:"output-format,omitempty"`
	TokenStorage string `yaml:"token-storage,omitempty"`
}

// reservedAuthParams are set by the login flow itself and cannot be
// overridden through extra-auth-params.
var reservedAuthParams = []string{
	"client_id", "redirect_uri", "response_type", "scope", "state",
	"code_challenge", "code_challenge_method",
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Provider: Provider{
			AuthorizeURL: DefaultAuthorizeURL,
			TokenURL:     DefaultTokenURL,
			Scopes:       []string{"tasks.readwrite", "tasks.read", "user.read"},
			AuthStyle:    "params",
		},
		Callback: Callback{
			Host:         DefaultCallbackHost,
			Port:         DefaultCallbackPort,
			Path:         DefaultCallbackPath,
			RedirectHost: DefaultRedirectHost,
			Timeout:      DefaultCallbackTimeout.String(),
		},
		API: API{
			Server:  DefaultAPIServer,
			Timeout: "30s",
		},
		Settings: Settings{
			OutputFormat: "table",
			TokenStorage: TokenStorageFile,
		},
	}
}

// Load reads the YAML file at path on top of DefaultConfig. The default
// endpoints only apply when the file names no authority, so that an
// authority alone leads to OIDC discovery.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Provider.AuthorizeURL, cfg.Provider.TokenURL = "", ""
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if cfg.Provider.Authority == "" {
		if cfg.Provider.AuthorizeURL == "" {
			cfg.Provider.AuthorizeURL = DefaultAuthorizeURL
		}
		if cfg.Provider.TokenURL == "" {
			cfg.Provider.TokenURL = DefaultTokenURL
		}
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields DefaultConfig.
// Environment overrides are applied in both cases.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		def := DefaultConfig()
		cfg = &def
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays TDI_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	raw, err := ReadEnvironment()
	if err != nil {
		return err
	}
	if raw.ClientID != "" {
		c.Provider.ClientID = raw.ClientID
	}
	if raw.ClientSecret != "" {
		c.Provider.ClientSecret = raw.ClientSecret
	}
	if raw.Authority != "" {
		c.Provider.Authority = raw.Authority
		c.Provider.AuthorizeURL = ""
		c.Provider.TokenURL = ""
	}
	if raw.CallbackPort != nil {
		c.Callback.Port = *raw.CallbackPort
	}
	if raw.CallbackTimeout != 0 {
		c.Callback.Timeout = raw.CallbackTimeout.String()
	}
	if raw.APIServer != "" {
		c.API.Server = raw.APIServer
	}
	if raw.TokenStorage != "" {
		c.Settings.TokenStorage = raw.TokenStorage
	}
	if raw.OutputFormat != "" {
		c.Settings.OutputFormat = raw.OutputFormat
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("%w: config version missing", ErrInvalid)
	}
	p := c.Provider
	if strings.TrimSpace(p.ClientID) == "" {
		return fmt.Errorf("%w: provider client-id is required (set it in the config file or TDI_CLIENT_ID)", ErrInvalid)
	}
	if p.Authority == "" && (p.AuthorizeURL == "" || p.TokenURL == "") {
		return fmt.Errorf("%w: provider needs an authority or both authorize-url and token-url", ErrInvalid)
	}
	for name, raw := range map[string]string{"authority": p.Authority, "authorize-url": p.AuthorizeURL, "token-url": p.TokenURL, "api server": c.API.Server} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", ErrInvalid, name, raw)
		}
	}
	if len(p.Scopes) == 0 {
		return fmt.Errorf("%w: at least one scope is required", ErrInvalid)
	}
	for _, key := range reservedAuthParams {
		if _, ok := p.ExtraAuthParams[key]; ok {
			return fmt.Errorf("%w: extra-auth-params cannot set %q", ErrInvalid, key)
		}
	}
	switch p.AuthStyle {
	case "", "auto", "params", "header":
	default:
		return fmt.Errorf("%w: unknown auth-style %q", ErrInvalid, p.AuthStyle)
	}
	if c.Callback.Port < 0 || c.Callback.Port > 65535 {
		return fmt.Errorf("%w: callback port %d out of range", ErrInvalid, c.Callback.Port)
	}
	if c.Callback.Path != "" && !strings.HasPrefix(c.Callback.Path, "/") {
		return fmt.Errorf("%w: callback path must start with '/'", ErrInvalid)
	}
	if _, err := c.CallbackTimeout(); err != nil {
		return err
	}
	if _, err := c.APITimeout(); err != nil {
		return err
	}
	switch c.Settings.TokenStorage {
	case "", TokenStorageFile, TokenStorageKeychain:
	default:
		return fmt.Errorf("%w: token storage must be %q or %q", ErrInvalid, TokenStorageFile, TokenStorageKeychain)
	}
	return nil
}

// CallbackAddr is the host:port the loopback listener binds.
func (c *Config) CallbackAddr() string {
	host := c.Callback.Host
	if host == "" {
		host = DefaultCallbackHost
	}
	return fmt.Sprintf("%s:%d", host, c.Callback.Port)
}

func (c *Config) CallbackPath() string {
	if c.Callback.Path == "" {
		return DefaultCallbackPath
	}
	return c.Callback.Path
}

func (c *Config) CallbackTimeout() (time.Duration, error) {
	return parseTimeout("callback timeout", c.Callback.Timeout, DefaultCallbackTimeout)
}

func (c *Config) APITimeout() (time.Duration, error) {
	return parseTimeout("api timeout", c.API.Timeout, 30*time.Second)
}

func parseTimeout(name, raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
	}
	return d, nil
}

// ResolveClientSecret returns the literal secret, or reads it from the
// configured environment variable or file. An empty result means a public
// client.
func (p Provider) ResolveClientSecret() (string, error) {
	if p.ClientSecret != "" {
		return p.ClientSecret, nil
	}
	if p.ClientSecretEnv != "" {
		value := strings.TrimSpace(os.Getenv(p.ClientSecretEnv))
		if value == "" {
			return "", fmt.Errorf("%w: client secret env var not set: %s", ErrInvalid, p.ClientSecretEnv)
		}
		return value, nil
	}
	if p.ClientSecretFile != "" {
		content, err := os.ReadFile(p.ClientSecretFile)
		if err != nil {
			return "", fmt.Errorf("%w: failed to read client secret file: %v", ErrInvalid, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return "", nil
}
