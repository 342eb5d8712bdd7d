package cli

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/reglet-dev/dlhost/domain/errors"
)

// loader is the part of the host that loadWithWait drives.
type loader interface {
	Load(ctx context.Context, path string) error
}

// loadWithWait loads path, retrying with exponential backoff for up to wait
// while the image does not exist. Any other failure stops the retries.
func loadWithWait(ctx context.Context, h loader, path string, wait time.Duration) error {
	if wait <= 0 {
		return h.Load(ctx, path)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = time.Second
	eb.MaxElapsedTime = wait

	return backoff.Retry(func() error {
		err := h.Load(ctx, path)
		if err == nil {
			return nil
		}
		var le *errors.LoadError
		if stdErrors.As(err, &le) && le.Reason == errors.LoadReasonNotFound {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(eb, ctx))
}
