package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/reglet-dev/dlhost/internal/fingerprint"
)

// LoadedPlugin is the plugin image currently installed in the host's slot.
// The image reference is unexported: the only way to free it is through the
// host's unload path.
type LoadedPlugin struct {
	image ports.Image

	// LoadedAt is when the image finished loading.
	LoadedAt time.Time

	// Path is the filesystem path the image was opened from.
	Path string

	// Backend is the name of the loader that opened the image.
	Backend string

	// Digest is the hex BLAKE2b-256 of the image file, empty when
	// fingerprinting is disabled or the file could not be read.
	Digest string

	// Generation is the load generation the image was installed under.
	Generation uint64
}

// release frees the image. Only the first call reaches the loader.
func (p *LoadedPlugin) release(ctx context.Context) error {
	img := p.image
	if img == nil {
		return nil
	}
	p.image = nil
	return img.Close(ctx)
}

// open maps path to a LoadedPlugin. The loader opens the path the policy
// matched, so swapping a symlink after the check has no effect. It does not
// touch the slot.
func (h *Host) open(ctx context.Context, path string) (*LoadedPlugin, error) {
	target := path
	if h.policy != nil {
		resolved, ok := h.policy.Resolve(path)
		if !ok {
			return nil, &errors.LoadError{
				Path:   path,
				Reason: errors.LoadReasonPolicy,
				Err:    fmt.Errorf("path is not in the allowed plugin paths"),
			}
		}
		target = resolved
	}

	img, err := h.loader.Open(ctx, target)
	if err != nil {
		return nil, &errors.LoadError{Path: path, Reason: loadReason(err), Err: err}
	}

	p := &LoadedPlugin{
		image:   img,
		Path:    path,
		Backend: h.loader.Name(),
	}
	if h.fingerprint {
		digest, err := fingerprint.File(target)
		if err != nil {
			h.logger.Debug("Host: image fingerprint unavailable", "path", path, "error", err)
		}
		p.Digest = digest
	}
	return p, nil
}

// loadReason classifies a backend error.
func loadReason(err error) errors.LoadReason {
	switch {
	case stdErrors.Is(err, ports.ErrImageNotFound):
		return errors.LoadReasonNotFound
	case stdErrors.Is(err, ports.ErrInvalidImage):
		return errors.LoadReasonInvalidImage
	default:
		return errors.LoadReasonPlatform
	}
}
