package cli

import (
	"context"
	"testing"
	"time"

	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyLoader struct {
	attempts int
	missing  int // attempts that report not found
	finalErr error
	lastPath string
}

func (f *flakyLoader) Load(_ context.Context, path string) error {
	f.attempts++
	f.lastPath = path
	if f.missing < 0 || f.attempts <= f.missing {
		return &errors.LoadError{Path: path, Reason: errors.LoadReasonNotFound}
	}
	return f.finalErr
}

func TestLoadWithWait_NoWait(t *testing.T) {
	f := &flakyLoader{missing: 1}
	err := loadWithWait(context.Background(), f, "/p.so", 0)
	assert.Equal(t, errors.KindLoad, errors.KindOf(err))
	assert.Equal(t, 1, f.attempts)
}

func TestLoadWithWait_AppearsLater(t *testing.T) {
	f := &flakyLoader{missing: 2}
	require.NoError(t, loadWithWait(context.Background(), f, "/p.so", 10*time.Second))
	assert.Equal(t, 3, f.attempts)
	assert.Equal(t, "/p.so", f.lastPath)
}

func TestLoadWithWait_PermanentFailure(t *testing.T) {
	f := &flakyLoader{finalErr: &errors.LoadError{Path: "/p.so", Reason: errors.LoadReasonInvalidImage}}
	err := loadWithWait(context.Background(), f, "/p.so", 10*time.Second)

	var le *errors.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, errors.LoadReasonInvalidImage, le.Reason)
	assert.Equal(t, 1, f.attempts, "only missing images are retried")
}

func TestLoadWithWait_GivesUp(t *testing.T) {
	f := &flakyLoader{missing: -1}
	err := loadWithWait(context.Background(), f, "/p.so", 200*time.Millisecond)

	var le *errors.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, errors.LoadReasonNotFound, le.Reason)
	assert.Greater(t, f.attempts, 1)
}

func TestLoadWithWait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &flakyLoader{missing: -1}
	err := loadWithWait(ctx, f, "/p.so", 10*time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.attempts)
}
