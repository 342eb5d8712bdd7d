package wazero

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	logger      *slog.Logger
	hostModule  string
	maxLogSize  uint32
	memoryPages uint32
	wasi        bool
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		logger:     slog.Default(),
		hostModule: DefaultHostModule,
		maxLogSize: DefaultMaxLogSize,
		wasi:       true,
	}
}

// Option configures the Loader.
type Option func(*loaderConfig)

// WithLogger sets the logger used for loader events and guest log messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *loaderConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHostModuleName sets the import module name of the host functions
// (default: "dlhost").
func WithHostModuleName(name string) Option {
	return func(c *loaderConfig) {
		c.hostModule = name
	}
}

// WithMaxLogSize limits how many bytes of one guest log message are read.
func WithMaxLogSize(size uint32) Option {
	return func(c *loaderConfig) {
		c.maxLogSize = size
	}
}

// WithMemoryLimitPages caps guest memory in 64KiB pages. Zero keeps the
// wazero default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *loaderConfig) {
		c.memoryPages = pages
	}
}

// WithoutWASI skips instantiating WASI preview 1.
func WithoutWASI() Option {
	return func(c *loaderConfig) {
		c.wasi = false
	}
}

// Loader opens wasm plugin images. All images share one runtime.
type Loader struct {
	runtime wazero.Runtime
	config  loaderConfig
}

var _ ports.ImageLoader = (*Loader)(nil)

// NewLoader creates the runtime and instantiates the host module.
func NewLoader(ctx context.Context, opts ...Option) (*Loader, error) {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rtCfg := wazero.NewRuntimeConfig()
	if cfg.memoryPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.memoryPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	if cfg.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
		}
	}
	if err := registerHostModule(ctx, rt, cfg); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return &Loader{runtime: rt, config: cfg}, nil
}

// Name implements ports.ImageLoader.
func (l *Loader) Name() string { return "wasm" }

// Open implements ports.ImageLoader.
func (l *Loader) Open(ctx context.Context, path string) (ports.Image, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ports.ErrImageNotFound, path)
		}
		return nil, err
	}
	if !bytes.HasPrefix(wasmBytes, wasmMagic) {
		return nil, fmt.Errorf("%w: %s is not a wasm module", ports.ErrInvalidImage, path)
	}

	compiled, err := l.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", ports.ErrInvalidImage, path, err)
	}

	// Anonymous instances, so the same image can be loaded again after an unload.
	modCfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := l.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module %s: %w", path, err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			_ = compiled.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize in %s: %w", path, err)
		}
	}

	l.config.logger.DebugContext(ctx, "wasm: image opened", "path", path, "size", len(wasmBytes))
	return &image{module: mod, compiled: compiled, path: path}, nil
}

// Close implements ports.ImageLoader. It closes the runtime and every
// module still instantiated in it.
func (l *Loader) Close(ctx context.Context) error {
	return l.runtime.Close(ctx)
}
