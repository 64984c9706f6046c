// Package client implements the HTTP client tdi uses to call the tasks API
// with the stored bearer token, and the task model the task commands print.
package client
