// Package cli implements the dlhost command line.
package cli

import (
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"runtime/debug"

	"github.com/reglet-dev/dlhost/application/config"
	"github.com/reglet-dev/dlhost/application/validation"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/host"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	backend    string
}

// Option adjusts the command tree.
type Option func(*app)

// WithOutput sets the writer for command output.
func WithOutput(w io.Writer) Option {
	return func(a *app) {
		a.out = w
	}
}

// WithErrOutput sets the writer for logs and errors.
func WithErrOutput(w io.Writer) Option {
	return func(a *app) {
		a.errOut = w
	}
}

// WithHostOptions appends host options to every host the commands build.
func WithHostOptions(opts ...host.Option) Option {
	return func(a *app) {
		a.hostOptions = append(a.hostOptions, opts...)
	}
}

// NewRootCommand creates the dlhost command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "dlhost",
		Short: "Load plugin libraries and exchange buffers with them",
		Long: `dlhost loads a plugin image (a native shared library or a wasm module),
resolves its exchange entry point and hands it fixed-capacity buffers to fill.

Configuration comes from an optional YAML file, DLHOST_* environment
variables and flags, in increasing order of precedence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd, flags)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), goruntime.GOOS, goruntime.GOARCH))
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&flags.backend, "backend", "", "Image backend (native, wasm)")

	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newSessionCommand(a))
	rootCmd.AddCommand(newSchemaCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))

	return rootCmd
}

// configure loads the configuration, applies flag overrides and builds the
// logger.
func (a *app) configure(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if flags.backend != "" {
		cfg.Backend = flags.backend
	}

	v, err := validation.NewConfigValidator()
	if err != nil {
		return err
	}
	if res := v.Validate(cfg); !res.Valid {
		return &errors.ConfigError{Source: "flags", Problems: res.Errors}
	}

	a.cfg = cfg
	a.logger, a.level = config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	return nil
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}
