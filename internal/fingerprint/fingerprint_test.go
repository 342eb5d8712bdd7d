package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_MatchesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libdemo.so")
	content := []byte("not really an ELF image")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	digest, err := File(path)
	require.NoError(t, err)
	assert.Len(t, digest, 64)
	assert.Equal(t, Bytes(content), digest)
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing.so"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBytes_Distinct(t *testing.T) {
	assert.NotEqual(t, Bytes([]byte("a")), Bytes([]byte("b")))
}
