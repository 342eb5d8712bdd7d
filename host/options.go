package host

import (
	"log/slog"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/ports"
)

// hostConfig holds configuration for the Host.
type hostConfig struct {
	loader      ports.ImageLoader
	logger      *slog.Logger
	pathPolicy  ports.PathPolicy
	recorder    ports.Recorder
	middleware  []Middleware
	entryPoints entities.EntryPoints
	maxCapacity int
	fingerprint bool
}

func defaultHostConfig() hostConfig {
	return hostConfig{
		entryPoints: entities.DefaultEntryPoints(),
		maxCapacity: entities.DefaultMaxCapacity,
		fingerprint: true,
	}
}

// Option configures the Host.
type Option func(*hostConfig)

// WithLoader sets the backend used to open plugin images.
// Default is the native loader of the current platform.
func WithLoader(l ports.ImageLoader) Option {
	return func(c *hostConfig) {
		c.loader = l
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *hostConfig) {
		c.logger = l
	}
}

// WithEntryPoints overrides the exported names resolved on every load.
func WithEntryPoints(ep entities.EntryPoints) Option {
	return func(c *hostConfig) {
		c.entryPoints = ep
	}
}

// WithPathPolicy restricts which image paths may be loaded.
func WithPathPolicy(p ports.PathPolicy) Option {
	return func(c *hostConfig) {
		c.pathPolicy = p
	}
}

// WithRecorder installs a lifecycle and exchange recorder, typically the
// prometheus collector.
func WithRecorder(r ports.Recorder) Option {
	return func(c *hostConfig) {
		c.recorder = r
	}
}

// WithMiddleware appends exchange middleware. Middleware runs in
// registration order, outermost first.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *hostConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithFingerprint enables or disables hashing the image file on load.
// Enabled by default.
func WithFingerprint(enabled bool) Option {
	return func(c *hostConfig) {
		c.fingerprint = enabled
	}
}

// WithMaxCapacity limits the capacity of exchange buffers. Requests above it
// fail with an InvalidBufferError before anything is allocated. Default is
// entities.DefaultMaxCapacity.
func WithMaxCapacity(n int) Option {
	return func(c *hostConfig) {
		c.maxCapacity = n
	}
}
