package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/policy"
	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/reglet-dev/dlhost/host"
	"github.com/reglet-dev/dlhost/infrastructure/native"
	"github.com/reglet-dev/dlhost/infrastructure/wazero"
	hostlog "github.com/reglet-dev/dlhost/log"
)

// NewLogger builds the host logger described by cfg. A nil writer logs to
// stderr. The returned LevelVar changes the level at runtime.
func NewLogger(cfg entities.LogConfig, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	if w == nil {
		w = os.Stderr
	}
	level, _ := hostlog.ParseLevel(cfg.Level)
	format, _ := hostlog.ParseFormat(cfg.Format)

	lv := new(slog.LevelVar)
	lv.Set(level)
	return hostlog.New(
		hostlog.WithWriter(w),
		hostlog.WithLevel(lv),
		hostlog.WithFormat(format),
		hostlog.WithSource(cfg.Source),
	), lv
}

// NewLoader creates the image loader of the configured backend.
func NewLoader(ctx context.Context, cfg *entities.HostConfig, logger *slog.Logger) (ports.ImageLoader, error) {
	switch cfg.Backend {
	case "", entities.BackendNative:
		opts := []native.Option{native.WithLogger(logger)}
		if cfg.LazyBinding {
			opts = append(opts, native.WithLazyBinding())
		}
		return native.NewLoader(opts...), nil
	case entities.BackendWasm:
		opts := []wazero.Option{
			wazero.WithLogger(logger),
			wazero.WithMemoryLimitPages(cfg.Wasm.MemoryLimitPages),
		}
		if cfg.Wasm.DisableWASI {
			opts = append(opts, wazero.WithoutWASI())
		}
		return wazero.NewLoader(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewPathPolicy builds the load allowlist. Denials are logged.
func NewPathPolicy(cfg entities.PolicyConfig, logger *slog.Logger) (*policy.PathPolicy, error) {
	return policy.NewPathPolicy(cfg.AllowedPaths,
		policy.WithSymlinkResolution(cfg.ResolveSymlinks),
		policy.WithDenialHandler(&policy.LogDenialHandler{Logger: logger}),
	)
}

// openLoader is NewLoader, swapped in tests.
var openLoader = NewLoader

// NewHost builds the host described by cfg. extra options are applied after
// the ones derived from cfg. The loader is owned by the host and is closed
// by host.Close, or here when the host cannot be created or an extra
// option supplies another loader.
func NewHost(ctx context.Context, cfg *entities.HostConfig, logger *slog.Logger, extra ...host.Option) (*host.Host, error) {
	pol, err := NewPathPolicy(cfg.Policy, logger)
	if err != nil {
		return nil, err
	}
	loader, err := openLoader(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := append([]host.Option{
		host.WithLogger(logger),
		host.WithLoader(loader),
		host.WithPathPolicy(pol),
		host.WithEntryPoints(cfg.EntryPoints),
		host.WithMaxCapacity(cfg.Exchange.Limit()),
	}, extra...)

	h, err := host.New(opts...)
	if err != nil {
		closeLoader(ctx, loader, logger)
		return nil, err
	}
	if h.Loader() != loader {
		// An extra WithLoader replaced ours.
		closeLoader(ctx, loader, logger)
	}
	return h, nil
}

func closeLoader(ctx context.Context, loader ports.ImageLoader, logger *slog.Logger) {
	if err := loader.Close(ctx); err != nil {
		logger.WarnContext(ctx, "Host: closing loader failed", "backend", loader.Name(), "error", err)
	}
}
