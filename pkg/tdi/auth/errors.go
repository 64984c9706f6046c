package auth

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration      = errors.New("invalid oauth configuration")
	ErrBrowserLaunch      = errors.New("failed to open browser")
	ErrCallbackListener   = errors.New("failed to start callback listener")
	ErrCallbackTimeout    = errors.New("timed out waiting for the authorization redirect; run 'tdi login' again")
	ErrProviderRedirect   = errors.New("authorization failed")
	ErrTokenExchange      = errors.New("token exchange failed")
	ErrCredentialStore    = errors.New("credential store error")
	ErrCorruptCredentials = fmt.Errorf("%w: stored credential is corrupt; run 'tdi login' again", ErrCredentialStore)
	ErrNotAuthenticated   = errors.New("not authenticated; run 'tdi login' first")
)

// ProviderRedirectError is the failure variant of a callback: the provider
// redirected back with an error, or the redirect could not be used.
type ProviderRedirectError struct {
	Code        string
	Description string
}

func (e *ProviderRedirectError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrProviderRedirect, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrProviderRedirect, e.Code, e.Description)
}

func (e *ProviderRedirectError) Unwrap() error { return ErrProviderRedirect }

type ExchangeErrorKind string

const (
	// ExchangeNetwork covers transport failures; the request may not have
	// reached the provider.
	ExchangeNetwork ExchangeErrorKind = "network"
	// ExchangeStatus is a non-2xx or error response from the token endpoint.
	ExchangeStatus ExchangeErrorKind = "status"
	// ExchangeMalformed is a 2xx response that is not a usable token.
	ExchangeMalformed ExchangeErrorKind = "malformed"
)

type TokenExchangeError struct {
	Kind       ExchangeErrorKind
	StatusCode int
	// ErrorCode is the RFC 6749 error code from the response body, if any.
	ErrorCode string
	Err       error
}

func (e *TokenExchangeError) Error() string {
	switch e.Kind {
	case ExchangeStatus:
		if e.ErrorCode != "" {
			return fmt.Sprintf("%s: token endpoint returned %d (%s)", ErrTokenExchange, e.StatusCode, e.ErrorCode)
		}
		return fmt.Sprintf("%s: token endpoint returned %d", ErrTokenExchange, e.StatusCode)
	default:
		return fmt.Sprintf("%s (%s): %v", ErrTokenExchange, e.Kind, e.Err)
	}
}

func (e *TokenExchangeError) Unwrap() []error { return []error{ErrTokenExchange, e.Err} }

// Retryable reports whether repeating the exchange could succeed.
func (e *TokenExchangeError) Retryable() bool {
	return e.Kind == ExchangeNetwork
}
