package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/telekom/tdi/pkg/tdi/auth"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL   *url.URL
	token     string
	http      *http.Client
	timeout   time.Duration
	userAgent string
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: "tdi",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid server %q: scheme and host are required", server)
		}
		c.baseURL = parsed
		return nil
	}
}

func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("invalid timeout %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithTLSConfig verifies the server against caFile when it is set.
func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		hc, err := auth.NewHTTPClient(caFile, insecureSkipTLSVerify, "")
		if err != nil {
			return err
		}
		c.http = hc
		return nil
	}
}

// User is the signed-in user's profile as returned by GET /me. The shape is
// provider-defined, so it is kept as a generic object.
type User map[string]any

// Me fetches the profile of the user the bearer token belongs to.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	if err := c.get(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	fullURL := *c.baseURL
	parsedEndpoint, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	fullURL.Path = path.Join(fullURL.Path, parsedEndpoint.Path)
	if parsedEndpoint.RawQuery != "" {
		fullURL.RawQuery = parsedEndpoint.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError understands both {"error":"msg"} and the Graph style
// {"error":{"code":"...","message":"..."}}.
func decodeError(resp *http.Response) error {
	var apiErr struct {
		Error json.RawMessage `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := ""
	if len(body) > 0 && json.Unmarshal(body, &apiErr) == nil && len(apiErr.Error) > 0 {
		var plain string
		var structured struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		switch {
		case json.Unmarshal(apiErr.Error, &plain) == nil:
			msg = plain
		case json.Unmarshal(apiErr.Error, &structured) == nil:
			msg = structured.Message
			if structured.Code != "" && msg != "" {
				msg = structured.Code + ": " + msg
			} else if structured.Code != "" {
				msg = structured.Code
			}
		}
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// Unwrap lets callers treat a rejected token like a missing one.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return auth.ErrNotAuthenticated
	}
	return nil
}
