package auth

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/tdi/pkg/system"
)

func startTestCallbackServer(t *testing.T, state string) *CallbackServer {
	t.Helper()
	server, err := StartCallbackServer("127.0.0.1:0", "/redirect", state, system.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = server.Shutdown(context.Background())
	})
	return server
}

func get(t *testing.T, rawURL string) (int, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestCallbackServerDeliversCode(t *testing.T) {
	server := startTestCallbackServer(t, "")

	status, body := get(t, "http://"+server.Addr()+"/redirect?code=ABC")
	assert.Equal(t, http.StatusCreated, status)
	assert.Contains(t, body, "Hello from <b>tdi</b>")
	assert.Contains(t, body, "you may safely close this browser window")

	code, err := server.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ABC", code)

	// A second redirect never produces a second result.
	status, _ = get(t, "http://"+server.Addr()+"/redirect?code=DEF")
	assert.Equal(t, http.StatusGone, status)
	select {
	case r := <-server.Results():
		t.Fatalf("unexpected second result %+v", r)
	default:
	}
}

func TestCallbackServerRejectsRedirects(t *testing.T) {
	cases := []struct {
		name      string
		query     string
		wantCode  string
		wantInErr string
	}{
		{"missing code", "", "invalid_request", "authorization code"},
		{"provider error", "error=access_denied&error_description=user+cancelled", "access_denied", "user cancelled"},
		{"state mismatch", "code=ABC&state=other", "invalid_state", "state does not match"},
		{"malformed query", "code=%zz", "invalid_request", "malformed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := startTestCallbackServer(t, "expected-state")

			status, body := get(t, "http://"+server.Addr()+"/redirect?"+tc.query)
			assert.Equal(t, http.StatusNotFound, status)
			assert.Contains(t, body, "error encountered requesting the access code")

			code, err := server.Wait(context.Background(), time.Second)
			assert.Empty(t, code)
			require.ErrorIs(t, err, ErrProviderRedirect)
			var redirectErr *ProviderRedirectError
			require.True(t, errors.As(err, &redirectErr))
			assert.Equal(t, tc.wantCode, redirectErr.Code)
			assert.Contains(t, err.Error(), tc.wantInErr)
		})
	}
}

func TestCallbackServerIgnoresOtherPaths(t *testing.T) {
	server := startTestCallbackServer(t, "")

	status, _ := get(t, "http://"+server.Addr()+"/favicon.ico")
	assert.Equal(t, http.StatusNotFound, status)

	resp, err := http.Post("http://"+server.Addr()+"/redirect?code=ABC", "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Neither request consumed the single result.
	status, _ = get(t, "http://"+server.Addr()+"/redirect?code=XYZ")
	assert.Equal(t, http.StatusCreated, status)
	code, err := server.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "XYZ", code)
}

func TestCallbackServerTimeout(t *testing.T) {
	log, logs := system.NewObservedLogger(zapcore.DebugLevel)
	server, err := StartCallbackServer("127.0.0.1:0", "/redirect", "", log)
	require.NoError(t, err)
	addr := server.Addr()

	start := time.Now()
	code, err := server.Wait(context.Background(), 50*time.Millisecond)
	assert.Empty(t, code)
	require.ErrorIs(t, err, ErrCallbackTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("Callback wait timed out").Len())

	// A late redirect is refused rather than delivered to nobody.
	status, _ := get(t, "http://"+addr+"/redirect?code=LATE")
	assert.Equal(t, http.StatusGone, status)

	require.NoError(t, server.Shutdown(context.Background()))
	require.NoError(t, server.Shutdown(context.Background()), "shutdown is idempotent")

	// The port is free again.
	listener, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	_ = listener.Close()
}

func TestCallbackServerContextCancel(t *testing.T) {
	server := startTestCallbackServer(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := server.Wait(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStartCallbackServerPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = busy.Close() }()

	_, err = StartCallbackServer(busy.Addr().String(), "/redirect", "", nil)
	require.ErrorIs(t, err, ErrCallbackListener)
	assert.Contains(t, err.Error(), busy.Addr().String())
}

func TestCallbackPageEscapesMessage(t *testing.T) {
	server := startTestCallbackServer(t, "")

	status, body := get(t, "http://"+server.Addr()+"/redirect?error=bad&error_description=%3Cscript%3Ealert(1)%3C%2Fscript%3E")
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}
