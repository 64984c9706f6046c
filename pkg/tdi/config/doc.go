// Package config loads the tdi configuration: the OAuth2 client registration,
// the loopback callback settings, the API endpoint and CLI preferences. Values
// come from a YAML file with TDI_* environment overrides on top.
package config
