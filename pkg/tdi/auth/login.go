package auth

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/tdi/pkg/system"
)

type State string

const (
	StateIdle             State = "idle"
	StateAwaitingRedirect State = "awaiting-redirect"
	StateExchangingToken  State = "exchanging-token"
	StatePersisting       State = "persisting"
	StateAuthenticated    State = "authenticated"
	StateFailed           State = "failed"
)

const (
	shutdownGrace       = 5 * time.Second
	defaultListenAddr   = "127.0.0.1:8000"
	defaultCallbackPath = "/redirect"
)

// LoginConfig is the static input of a login attempt.
type LoginConfig struct {
	Provider ProviderConfig
	// ListenAddr is the loopback address to bind, e.g. 127.0.0.1:8000.
	ListenAddr   string
	CallbackPath string
	// RedirectHost is the host placed in the redirect URI; it must match the
	// registration at the provider (usually "localhost").
	RedirectHost string
	// Timeout bounds the wait for the browser redirect. Zero waits until ctx
	// is done.
	Timeout time.Duration
}

// Authenticator runs the authorization code flow end to end. It is a plain
// value so the one-shot CLI and the interactive shell can both drive it.
type Authenticator struct {
	Config    LoginConfig
	Browser   BrowserOpener
	Exchanger *Exchanger
	Store     *TokenStore
	Out       io.Writer
	Log       *zap.SugaredLogger

	state atomic.Value
}

func (a *Authenticator) State() State {
	if s, ok := a.state.Load().(State); ok {
		return s
	}
	return StateIdle
}

// Login returns only once the token is stored. On any failure the listener
// has already released its port and no credential has been written.
func (a *Authenticator) Login(ctx context.Context) (*Credential, error) {
	log := system.LoggerOrNop(a.Log)
	a.transition(log, StateIdle)
	if a.Store == nil {
		return nil, a.fail(log, fmt.Errorf("%w: no token store configured", ErrConfiguration))
	}
	exchanger := a.Exchanger
	if exchanger == nil {
		exchanger = &Exchanger{Retry: DefaultRetryConfig(), Log: log}
	}

	endpoint, err := ResolveEndpoint(ctx, a.Config.Provider, exchanger.HTTPClient)
	if err != nil {
		return nil, a.fail(log, err)
	}

	addr, path := a.Config.ListenAddr, a.Config.CallbackPath
	if addr == "" {
		addr = defaultListenAddr
	}
	if path == "" {
		path = defaultCallbackPath
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, a.fail(log, fmt.Errorf("%w on %s: %v", ErrCallbackListener, addr, err))
	}
	redirectURI, err := RedirectURI(a.Config.RedirectHost, listener.Addr().String(), path)
	if err != nil {
		_ = listener.Close()
		return nil, a.fail(log, err)
	}
	session, err := NewSession(a.Config.Provider, endpoint, redirectURI)
	if err != nil {
		_ = listener.Close()
		return nil, a.fail(log, err)
	}

	server := NewCallbackServer(listener, path, session.State, log)
	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			log.Warnw("Callback listener did not shut down cleanly", "error", err)
		}
	}
	defer shutdown()
	a.transition(log, StateAwaitingRedirect)

	authURL := session.AuthCodeURL()
	if a.Out != nil {
		_, _ = fmt.Fprintf(a.Out, "tdi: authenticating, a browser window will open.\nIf it does not, open the following URL in your browser:\n%s\n", authURL)
	}
	if a.Browser != nil {
		if err := a.Browser.Open(authURL); err != nil {
			log.Warnw("Could not open the browser, continue with the printed URL", "error", err)
		}
	}

	code, err := server.Wait(ctx, a.Config.Timeout)
	shutdown()
	if err != nil {
		return nil, a.fail(log, err)
	}

	a.transition(log, StateExchangingToken)
	token, err := exchanger.Exchange(ctx, session, code)
	if err != nil {
		return nil, a.fail(log, err)
	}

	a.transition(log, StatePersisting)
	cred := NewCredential(session, token)
	if err := a.Store.Save(cred); err != nil {
		return nil, a.fail(log, err)
	}
	a.transition(log, StateAuthenticated)
	return cred, nil
}

func (a *Authenticator) transition(log *zap.SugaredLogger, to State) {
	from := a.State()
	a.state.Store(to)
	if from != to {
		log.Debugw("Login state changed", "from", string(from), "to", string(to))
	}
}

func (a *Authenticator) fail(log *zap.SugaredLogger, err error) error {
	a.transition(log, StateFailed)
	log.Debugw("Login failed", "error", err)
	return err
}
