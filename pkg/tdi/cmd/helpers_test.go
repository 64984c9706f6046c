package cmd

import (
	"bytes"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/telekom/tdi/pkg/tdi/auth"
	"github.com/telekom/tdi/pkg/tdi/config"
)

type browserFunc func(string) error

func (f browserFunc) Open(url string) error { return f(url) }

type testEnv struct {
	dir        string
	configPath string
	out        *bytes.Buffer
	errOut     *bytes.Buffer
	browser    browserFunc
	input      string
}

// newTestEnv writes a config file into a temp dir. The callback listener binds
// an ephemeral port so tests can run in parallel with a real tdi.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	t.Setenv("TDI_CALLBACK_PORT", "0")
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Provider.ClientID = "client-1"
	cfg.Provider.AuthorizeURL = "https://login.example.com/authorize"
	cfg.Provider.TokenURL = "https://login.example.com/token"
	if mutate != nil {
		mutate(&cfg)
	}
	content, err := yaml.Marshal(&cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return &testEnv{
		dir:        dir,
		configPath: path,
		out:        &bytes.Buffer{},
		errOut:     &bytes.Buffer{},
		browser: func(string) error {
			t.Error("browser must not be opened")
			return nil
		},
	}
}

func (e *testEnv) run(args ...string) error {
	root := NewRootCommand(Config{
		ConfigPath:   e.configPath,
		ConfigDir:    e.dir,
		OutputWriter: e.out,
		ErrWriter:    e.errOut,
		Input:        strings.NewReader(e.input),
		Browser:      e.browser,
	})
	root.SetArgs(args)
	return root.Execute()
}

func (e *testEnv) credentialsPath() string {
	return (&auth.TokenStore{Dir: e.dir}).Path()
}

// completeRedirect plays the provider and the browser: it calls the loopback
// redirect URI from the authorization URL with the given code.
func completeRedirect(t *testing.T, code string) browserFunc {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		redirect, err := url.Parse(q.Get("redirect_uri"))
		if err != nil {
			return err
		}
		target := "http://127.0.0.1:" + redirect.Port() + redirect.Path + "?" +
			url.Values{"code": {code}, "state": {q.Get("state")}}.Encode()
		resp, err := http.Get(target)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("redirect answered %d", resp.StatusCode)
		}
		return nil
	}
}
