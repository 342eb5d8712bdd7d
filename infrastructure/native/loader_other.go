//go:build !(darwin || freebsd || linux || windows)

package native

import (
	"fmt"
	"runtime"

	"github.com/reglet-dev/dlhost/domain/ports"
)

func openImage(path string, _ loaderConfig) (ports.Image, error) {
	return nil, fmt.Errorf("%w: native plugins are not supported on %s", ports.ErrInvalidImage, runtime.GOOS)
}
