// Package auth implements the tdi login: an OAuth2 authorization code flow
// with a one-shot loopback listener that captures the provider redirect, the
// code-for-token exchange and the credential store used by later commands.
package auth
