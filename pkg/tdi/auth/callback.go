package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/telekom/tdi/pkg/system"
)

// Result is what the loopback listener captured: either an authorization
// code or the reason there is none.
type Result struct {
	Code string
	Err  error
}

const callbackPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>tdi login</title></head>
<body>
{{- if .OK }}
<p>Hello from <b>tdi</b> - the access code was received, you may safely close this browser window!</p>
{{- else }}
<p>Hello from <b>tdi</b> - error encountered requesting the access code.</p>
<p>{{ .Message | trunc 300 | default "unknown error" }}</p>
{{- end }}
</body>
</html>
`

var callbackTemplate = template.Must(template.New("callback").Funcs(sprig.HtmlFuncMap()).Parse(callbackPage))

// CallbackServer is a one-shot HTTP listener for the provider redirect. The
// first request to its path claims the single result slot; later requests are
// answered with 410 and never reach the consumer.
type CallbackServer struct {
	path     string
	state    string
	listener net.Listener
	server   *http.Server
	log      *zap.SugaredLogger

	claimed atomic.Bool
	results chan Result
	served  chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// StartCallbackServer binds addr and starts serving in the background. When
// state is non-empty, redirects carrying a different state are rejected.
func StartCallbackServer(addr, path, state string, log *zap.SugaredLogger) (*CallbackServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w on %s: %v", ErrCallbackListener, addr, err)
	}
	return NewCallbackServer(listener, path, state, log), nil
}

// NewCallbackServer serves the redirect path on an already bound listener and
// takes ownership of it.
func NewCallbackServer(listener net.Listener, path, state string, log *zap.SugaredLogger) *CallbackServer {
	log = system.LoggerOrNop(log)
	s := &CallbackServer{
		path:     path,
		state:    state,
		listener: listener,
		log:      log.With("addr", listener.Addr().String()),
		results:  make(chan Result, 1),
		served:   make(chan struct{}),
	}

	router := mux.NewRouter()
	router.HandleFunc(path, s.handleRedirect).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(http.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(http.NotFound)

	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(s.served)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warnw("Callback listener stopped unexpectedly", "error", err)
		}
	}()
	s.log.Debugw("Callback listener started", "path", path)
	return s
}

// Addr is the bound address, useful when the configured port was 0.
func (s *CallbackServer) Addr() string {
	return s.listener.Addr().String()
}

// Results yields exactly one Result, unless the wait timed out first.
func (s *CallbackServer) Results() <-chan Result {
	return s.results
}

// Wait blocks until a redirect has been handled, timeout elapses or ctx is
// done. A timeout claims the result slot, so a late redirect is refused.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-s.results:
		return r.Code, r.Err
	case <-expired:
		if s.claimed.CompareAndSwap(false, true) {
			s.log.Debugw("Callback wait timed out", "timeout", timeout.String())
			return "", ErrCallbackTimeout
		}
	case <-ctx.Done():
		if s.claimed.CompareAndSwap(false, true) {
			return "", ctx.Err()
		}
	}
	// A redirect claimed the slot concurrently; its result is being written.
	r := <-s.results
	return r.Code, r.Err
}

// Shutdown stops accepting connections, waits for in-flight responses and
// releases the port. It is safe to call more than once.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.claimed.Store(true)
		err := s.server.Shutdown(ctx)
		if err != nil {
			_ = s.server.Close()
		}
		<-s.served
		s.shutdownErr = err
		s.log.Debugw("Callback listener stopped")
	})
	return s.shutdownErr
}

func (s *CallbackServer) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if !s.claimed.CompareAndSwap(false, true) {
		http.Error(w, "this login attempt has already completed", http.StatusGone)
		return
	}

	result := s.parse(r.URL.RawQuery)
	status := http.StatusCreated
	message := ""
	if result.Err != nil {
		status = http.StatusNotFound
		message = result.Err.Error()
		s.log.Infow("Callback reported an error", "error", result.Err)
	} else {
		s.log.Infow("Authorization code received")
	}

	writePage(w, status, result.Err == nil, message)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	s.results <- result
}

func (s *CallbackServer) parse(rawQuery string) Result {
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Result{Err: &ProviderRedirectError{Code: "invalid_request", Description: "malformed redirect query"}}
	}
	if code := query.Get("error"); code != "" {
		return Result{Err: &ProviderRedirectError{Code: code, Description: query.Get("error_description")}}
	}
	if s.state != "" && query.Get("state") != s.state {
		return Result{Err: &ProviderRedirectError{Code: "invalid_state", Description: "state does not match this login attempt"}}
	}
	code := query.Get("code")
	if code == "" {
		return Result{Err: &ProviderRedirectError{Code: "invalid_request", Description: "redirect did not include an authorization code"}}
	}
	return Result{Code: code}
}

func writePage(w http.ResponseWriter, status int, ok bool, message string) {
	var body bytes.Buffer
	if err := callbackTemplate.Execute(&body, struct {
		OK      bool
		Message string
	}{OK: ok, Message: message}); err != nil {
		body.Reset()
		body.WriteString("tdi: " + http.StatusText(status))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	_, _ = w.Write(body.Bytes())
}
