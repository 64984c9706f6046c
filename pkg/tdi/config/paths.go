package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = "tdi"
	defaultConfigFile    = "config.yaml"
)

// DefaultConfigDir is the per-user directory holding the config file and the
// stored credential. TDI_CONFIG_DIR overrides it.
func DefaultConfigDir() string {
	// string fields always parse; other errors surface from ApplyEnv
	if vars, _ := ReadEnvironment(); vars.ConfigDir != "" {
		return vars.ConfigDir
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+defaultConfigDirName)
}

func DefaultConfigPath() string {
	if vars, _ := ReadEnvironment(); vars.ConfigPath != "" {
		return vars.ConfigPath
	}
	return filepath.Join(DefaultConfigDir(), defaultConfigFile)
}
