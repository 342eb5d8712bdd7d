package native

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/reglet-dev/dlhost/domain/ports"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	logger *slog.Logger
	lazy   bool
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		logger: slog.Default(),
	}
}

// Option configures the Loader.
type Option func(*loaderConfig)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *loaderConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLazyBinding resolves the image's own undefined symbols on first use
// instead of at load time. Unresolvable dependencies then abort the process
// on first call rather than failing Open. Ignored on Windows.
func WithLazyBinding() Option {
	return func(c *loaderConfig) {
		c.lazy = true
	}
}

// Loader opens native shared libraries.
type Loader struct {
	config loaderConfig
}

var _ ports.ImageLoader = (*Loader)(nil)

// NewLoader creates a native loader.
func NewLoader(opts ...Option) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// Name implements ports.ImageLoader.
func (l *Loader) Name() string { return "native" }

// Open implements ports.ImageLoader.
func (l *Loader) Open(ctx context.Context, path string) (ports.Image, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := sniff(abs); err != nil {
		return nil, err
	}

	img, err := openImage(abs, l.config)
	if err != nil {
		return nil, err
	}
	l.config.logger.DebugContext(ctx, "native: image opened", "path", abs, "lazy", l.config.lazy)
	return img, nil
}

// Close implements ports.ImageLoader. The native loader holds no shared state.
func (l *Loader) Close(context.Context) error { return nil }

// Leading bytes of the executable formats the supported platforms load.
var magics = [][]byte{
	{0x7f, 'E', 'L', 'F'},    // ELF
	{0xfe, 0xed, 0xfa, 0xce}, // Mach-O 32-bit
	{0xfe, 0xed, 0xfa, 0xcf}, // Mach-O 64-bit
	{0xce, 0xfa, 0xed, 0xfe}, // Mach-O 32-bit, little endian
	{0xcf, 0xfa, 0xed, 0xfe}, // Mach-O 64-bit, little endian
	{0xca, 0xfe, 0xba, 0xbe}, // Mach-O universal
	{'M', 'Z'},               // PE
}

// sniff rejects paths that do not exist or do not look like a shared
// library before they reach the platform loader, whose errors are plain
// strings.
func sniff(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ports.ErrImageNotFound, path)
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ports.ErrInvalidImage, path)
	}

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !stdErrors.Is(err, io.ErrUnexpectedEOF) && !stdErrors.Is(err, io.EOF) {
		return err
	}
	head = head[:n]
	for _, m := range magics {
		if bytes.HasPrefix(head, m) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a shared library", ports.ErrInvalidImage, path)
}
