package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Environment holds every TDI_* variable. Unset variables keep their zero
// value; CallbackPort is a pointer because 0 asks for an ephemeral port.
type Environment struct {
	ConfigPath      string        `env:"TDI_CONFIG"`
	ConfigDir       string        `env:"TDI_CONFIG_DIR"`
	ClientID        string        `env:"TDI_CLIENT_ID"`
	ClientSecret    string        `env:"TDI_CLIENT_SECRET"`
	Authority       string        `env:"TDI_AUTHORITY"`
	CallbackPort    *int          `env:"TDI_CALLBACK_PORT"`
	CallbackTimeout time.Duration `env:"TDI_CALLBACK_TIMEOUT"`
	APIServer       string        `env:"TDI_API_SERVER"`
	TokenStorage    string        `env:"TDI_TOKEN_STORAGE"`
	OutputFormat    string        `env:"TDI_OUTPUT"`
	Verbose         bool          `env:"TDI_VERBOSE"`
	NoBrowser       bool          `env:"TDI_NO_BROWSER"`
}

// ReadEnvironment parses the TDI_* variables. On a parse error the returned
// Environment still carries every variable that did parse.
func ReadEnvironment() (Environment, error) {
	vars, err := env.ParseAs[Environment]()
	if err != nil {
		return vars, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return vars, nil
}
