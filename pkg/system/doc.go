// Package system holds process-wide helpers shared by the tdi commands,
// currently logger construction.
package system
