package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/telekom/tdi/pkg/system"
)

// AccessToken is the token material obtained for one session.
type AccessToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	IDToken      string    `json:"id_token,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// IsExpired reports whether the provider-supplied expiry has passed. Tokens
// without an expiry never expire locally.
func (t *AccessToken) IsExpired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry)
}

// RetryConfig bounds the retries of network-class exchange failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Exchanger trades an authorization code for an access token at the
// session's token endpoint.
type Exchanger struct {
	HTTPClient *http.Client
	Retry      RetryConfig
	Log        *zap.SugaredLogger
}

func (e *Exchanger) Exchange(ctx context.Context, s *Session, code string) (*AccessToken, error) {
	log := system.LoggerOrNop(e.Log)
	if e.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.HTTPClient)
	}
	var opts []oauth2.AuthCodeOption
	if s.verifier != "" {
		opts = append(opts, oauth2.VerifierOption(s.verifier))
	}

	backoff := e.Retry.InitialBackoff
	for attempt := 0; ; attempt++ {
		token, err := s.oauth.Exchange(ctx, code, opts...)
		if err == nil {
			return newAccessToken(token, s.Scopes), nil
		}
		xerr := classifyExchangeError(err)
		if !xerr.Retryable() || attempt >= e.Retry.MaxRetries || ctx.Err() != nil {
			return nil, xerr
		}

		log.Debugw("Token exchange failed, retrying",
			"attempt", attempt+1,
			"maxRetries", e.Retry.MaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, xerr
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * e.Retry.BackoffMultiplier)
		if backoff > e.Retry.MaxBackoff {
			backoff = e.Retry.MaxBackoff
		}
	}
}

func newAccessToken(token *oauth2.Token, scopes []string) *AccessToken {
	idToken, _ := token.Extra("id_token").(string)
	return &AccessToken{
		AccessToken:  token.AccessToken,
		TokenType:    token.Type(),
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		IDToken:      idToken,
		Scopes:       append([]string(nil), scopes...),
	}
}

func classifyExchangeError(err error) *TokenExchangeError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &TokenExchangeError{Kind: ExchangeStatus, StatusCode: status, ErrorCode: retrieveErr.ErrorCode, Err: err}
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &TokenExchangeError{Kind: ExchangeNetwork, Err: err}
	}
	// oauth2 flattens response body read failures with %v.
	if strings.Contains(err.Error(), "cannot fetch token") {
		return &TokenExchangeError{Kind: ExchangeNetwork, Err: err}
	}
	return &TokenExchangeError{Kind: ExchangeMalformed, Err: err}
}
