package client

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/tdi/pkg/tdi/auth"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "missing server",
			opts:    []Option{},
			wantErr: true,
		},
		{
			name:    "relative server",
			opts:    []Option{WithServer("graph.example.com")},
			wantErr: true,
		},
		{
			name: "valid config",
			opts: []Option{
				WithServer("https://example.com"),
				WithToken("test-token"),
			},
		},
		{
			name: "with custom user agent and timeout",
			opts: []Option{
				WithServer("https://example.com"),
				WithUserAgent("test-agent"),
				WithTimeout(5 * time.Second),
			},
		},
		{
			name: "negative timeout",
			opts: []Option{
				WithServer("https://example.com"),
				WithTimeout(-time.Second),
			},
			wantErr: true,
		},
		{
			name: "missing CA file",
			opts: []Option{
				WithServer("https://example.com"),
				WithTLSConfig("/does/not/exist.pem", false),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, client)
			} else {
				require.NoError(t, err)
				require.NotNil(t, client)
			}
		})
	}
}

func TestMeWithCAFile(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"displayName":"Ada Lovelace"}`))
	}))
	defer server.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, pemBytes, 0o600))

	t.Run("trusted", func(t *testing.T) {
		c, err := New(WithServer(server.URL), WithTLSConfig(caFile, false), WithTimeout(5*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, c.http.Timeout)

		user, err := c.Me(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", user["displayName"])
	})

	t.Run("untrusted", func(t *testing.T) {
		c, err := New(WithServer(server.URL), WithTLSConfig("", false))
		require.NoError(t, err)
		_, err = c.Me(context.Background())
		require.Error(t, err)
	})
}

func TestMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1.0/me", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"displayName":       "Ada Lovelace",
			"userPrincipalName": "ada@example.com",
		})
	}))
	defer server.Close()

	c, err := New(
		WithServer(server.URL+"/v1.0"),
		WithToken("test-token"),
		WithUserAgent("test-agent"),
	)
	require.NoError(t, err)

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user["displayName"])
	assert.Equal(t, "ada@example.com", user["userPrincipalName"])
}

func TestMeErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantUnauth bool
	}{
		{"graph style", http.StatusUnauthorized, `{"error":{"code":"InvalidAuthenticationToken","message":"Access token has expired."}}`, "InvalidAuthenticationToken: Access token has expired.", true},
		{"plain error", http.StatusForbidden, `{"error":"forbidden"}`, "forbidden", false},
		{"text body", http.StatusBadGateway, "upstream down", "upstream down", false},
		{"empty body", http.StatusInternalServerError, "", "500 Internal Server Error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, err := New(WithServer(server.URL), WithToken("t"))
			require.NoError(t, err)

			_, err = c.Me(context.Background())
			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantMsg, httpErr.Message)
			assert.Equal(t, tt.wantUnauth, errors.Is(err, auth.ErrNotAuthenticated))
		})
	}
}

func TestMeMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)
	_, err = c.Me(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}
