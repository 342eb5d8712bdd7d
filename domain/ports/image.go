package ports

import (
	"context"
	"errors"
)

// Sentinel errors image loaders wrap so the host can classify failures
// without knowing the backend.
var (
	// ErrImageNotFound means the path does not name an existing file.
	ErrImageNotFound = errors.New("image not found")

	// ErrInvalidImage means the file exists but is not loadable by this
	// backend on this platform or architecture.
	ErrInvalidImage = errors.New("invalid image")

	// ErrSymbolMissing means the image does not export the requested name.
	ErrSymbolMissing = errors.New("symbol not exported")

	// ErrImageClosed means the image was already released.
	ErrImageClosed = errors.New("image already closed")
)

// ImageLoader maps a filesystem path to a loaded plugin image using a
// platform dynamic-loading facility.
type ImageLoader interface {
	// Name identifies the backend (e.g. "native", "wasm").
	Name() string

	// Open loads the image at path.
	Open(ctx context.Context, path string) (Image, error)

	// Close releases backend-wide resources. Images opened by the loader
	// must be closed first.
	Close(ctx context.Context) error
}

// Image is one loaded plugin image. Implementations must make Close safe to
// call more than once: only the first call releases the OS resource, later
// calls return ErrImageClosed.
type Image interface {
	// ResolveExchange looks up the data-exchange entry point.
	ResolveExchange(name string) (ExchangeEntry, error)

	// ResolveDiagnostic looks up the greeting entry point.
	ResolveDiagnostic(name string) (DiagnosticEntry, error)

	// Close releases the image.
	Close(ctx context.Context) error
}

// ExchangeEntry calls a resolved data-exchange entry point.
//
// The region is valid only for the duration of the call. In probe mode
// (override == false) the entry point must not write to it. The returned
// count is the raw value the plugin produced and is not yet validated.
type ExchangeEntry interface {
	Exchange(ctx context.Context, region []byte, override bool) (uint64, error)
}

// DiagnosticEntry calls a resolved greeting entry point.
type DiagnosticEntry interface {
	Diagnostic(ctx context.Context) (string, error)
}

// CopyOutEntry calls a resolved copy-out entry point. The plugin reads
// input and returns a buffer it allocated plus a release callback.
//
// A non-empty reply is copied into Go memory before it is released, and the
// release callback runs exactly once for every non-null buffer, including
// one larger than limit. A null buffer yields a nil reply and size 0. A
// reply larger than limit is not copied: the entry returns a nil reply and
// the size the plugin reported.
type CopyOutEntry interface {
	CopyOut(ctx context.Context, input []byte, limit int) (reply []byte, size uint64, err error)
}

// CopyOutImage is implemented by images whose backend can call copy-out
// entry points.
type CopyOutImage interface {
	ResolveCopyOut(name string) (CopyOutEntry, error)
}
