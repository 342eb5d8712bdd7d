package native_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/reglet-dev/dlhost/infrastructure/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Name(t *testing.T) {
	assert.Equal(t, "native", native.NewLoader().Name())
}

func TestLoader_OpenMissing(t *testing.T) {
	l := native.NewLoader()
	_, err := l.Open(context.Background(), filepath.Join(t.TempDir(), "libnope.so"))
	assert.ErrorIs(t, err, ports.ErrImageNotFound)
}

func TestLoader_OpenRejectsNonLibraries(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content []byte
	}{
		{"Text file", []byte("#!/bin/sh\necho hi\n")},
		{"Empty file", nil},
		{"Wasm module", []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}},
	}

	l := native.NewLoader(native.WithLazyBinding())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, tt.content, 0o600))

			_, err := l.Open(context.Background(), path)
			assert.ErrorIs(t, err, ports.ErrInvalidImage)
		})
	}
}

func TestLoader_OpenDirectory(t *testing.T) {
	_, err := native.NewLoader().Open(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ports.ErrInvalidImage)
}

func TestLoader_CorruptLibraryFailsToOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libbroken.so")
	require.NoError(t, os.WriteFile(path, []byte{0x7f, 'E', 'L', 'F', 0, 0, 0, 0}, 0o600))

	_, err := native.NewLoader().Open(context.Background(), path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrImageNotFound)
}

func TestLoader_Close(t *testing.T) {
	assert.NoError(t, native.NewLoader().Close(context.Background()))
}
