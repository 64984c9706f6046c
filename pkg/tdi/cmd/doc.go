// Package cmd wires the tdi command tree: login and token management, the
// user and task commands, and an interactive shell that re-dispatches each
// input line through the same tree.
package cmd
