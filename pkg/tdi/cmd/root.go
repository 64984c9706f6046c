package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/tdi/pkg/system"
	"github.com/telekom/tdi/pkg/tdi/auth"
	"github.com/telekom/tdi/pkg/tdi/config"
	"github.com/telekom/tdi/pkg/tdi/output"
	"github.com/telekom/tdi/pkg/version"
)

type Config struct {
	// Context is the parent of every command context, e.g. one cancelled on
	// SIGINT.
	Context    context.Context
	ConfigPath string
	// ConfigDir holds credentials.json.
	ConfigDir    string
	OutputWriter io.Writer
	ErrWriter    io.Writer
	Input        io.Reader
	Browser      auth.BrowserOpener

	// shell is set for commands run from the interactive shell; its global
	// flags become the defaults of every line.
	shell *runtimeState
}

type runtimeState struct {
	configPath           string
	configDir            string
	cfg                  *config.Config
	outputFormat         string
	tokenStorageOverride string
	timeout              time.Duration
	verbose              bool
	noBrowser            bool
	writer               io.Writer
	errWriter            io.Writer
	input                io.Reader
	browser              auth.BrowserOpener
	log                  *zap.SugaredLogger
	inShell              bool
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		ConfigDir:    config.DefaultConfigDir(),
		OutputWriter: os.Stdout,
		ErrWriter:    os.Stderr,
		Input:        os.Stdin,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		configDir:  cfg.ConfigDir,
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrWriter,
		input:      cfg.Input,
		browser:    cfg.Browser,
	}
	if cfg.shell != nil {
		rt.inShell = true
		rt.outputFormat = cfg.shell.outputFormat
		rt.tokenStorageOverride = cfg.shell.tokenStorageOverride
		rt.timeout = cfg.shell.timeout
		rt.verbose = cfg.shell.verbose
	}

	root := &cobra.Command{
		Use:           "tdi",
		Short:         "A to-do list on the command line, backed by your Microsoft account",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.configDir == "" {
				rt.configDir = config.DefaultConfigDir()
			}
			// parse errors are reported once the config is loaded
			vars, _ := config.ReadEnvironment()
			if !rt.verbose {
				rt.verbose = vars.Verbose
			}
			rt.noBrowser = vars.NoBrowser
			log, err := system.NewLogger(rt.verbose)
			if err != nil {
				return err
			}
			rt.log = log

			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return rt.EnsureConfigLoaded()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", rt.outputFormat, "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", rt.tokenStorageOverride, "Token storage backend: file or keychain")
	root.PersistentFlags().DurationVar(&rt.timeout, "timeout", rt.timeout, "How long login waits for the browser redirect (default from config, 5m)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", rt.verbose, "Enable debug logging on stderr")

	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	root.SetContext(context.WithValue(parent, runtimeKey{}, rt))
	root.SetIn(rt.inputOrStdin())
	root.SetOut(rt.Writer())
	root.SetErr(rt.ErrWriter())

	root.AddCommand(
		NewLoginCommand(),
		NewLogoutCommand(),
		NewStatusCommand(),
		NewMeCommand(),
		NewShowCommand(),
		NewAddCommand(),
		NewCompleteCommand(),
		NewReopenCommand(),
		NewDeleteCommand(),
		NewShellCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	if rt.outputFormat != "" {
		return output.ParseFormat(rt.outputFormat)
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return output.ParseFormat(rt.cfg.Settings.OutputFormat)
	}
	return output.FormatTable, nil
}

func (rt *runtimeState) TokenStorage() string {
	if rt.tokenStorageOverride != "" {
		return rt.tokenStorageOverride
	}
	if rt.cfg != nil && rt.cfg.Settings.TokenStorage != "" {
		return rt.cfg.Settings.TokenStorage
	}
	return config.TokenStorageFile
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) inputOrStdin() io.Reader {
	if rt.input != nil {
		return rt.input
	}
	return os.Stdin
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	return system.LoggerOrNop(rt.log)
}

// EnsureConfigLoaded reads the config file, falling back to defaults when it
// does not exist, and applies TDI_* environment overrides.
func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.LoadOrDefault(rt.configPathValue())
	if err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

func (rt *runtimeState) TokenStore() (*auth.TokenStore, error) {
	mode, err := auth.ParseStorageMode(rt.TokenStorage())
	if err != nil {
		return nil, err
	}
	dir := rt.configDir
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	return &auth.TokenStore{Dir: dir, StorageMode: mode}, nil
}

// Exchanger talks to the provider with the configured TLS settings; its
// client is also used for discovery.
func (rt *runtimeState) Exchanger() (*auth.Exchanger, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	hc, err := auth.NewHTTPClient(rt.cfg.Provider.CAFile, rt.cfg.Provider.InsecureSkipTLS, version.UserAgent())
	if err != nil {
		return nil, err
	}
	return &auth.Exchanger{HTTPClient: hc, Retry: auth.DefaultRetryConfig(), Log: rt.Logger()}, nil
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}

func (rt *runtimeState) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(rt.Writer(), format, args...)
}
