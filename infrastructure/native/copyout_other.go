//go:build (darwin || freebsd || linux || windows) && !amd64

package native

import (
	"fmt"
	"runtime"

	"github.com/reglet-dev/dlhost/domain/ports"
)

// newCopyOut fails: without a way to pass the hidden result pointer the
// struct-returning entry point cannot be called on this architecture.
func newCopyOut(uintptr) (ports.CopyOutEntry, error) {
	return nil, fmt.Errorf("%w: copy-out entry points are not supported on %s", ports.ErrSymbolMissing, runtime.GOARCH)
}
