package wazero

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLoaderConfig(t *testing.T) {
	cfg := defaultLoaderConfig()

	assert.Equal(t, DefaultHostModule, cfg.hostModule)
	assert.Equal(t, uint32(DefaultMaxLogSize), cfg.maxLogSize)
	assert.True(t, cfg.wasi)
	assert.Zero(t, cfg.memoryPages)
}

func TestLoaderOptions(t *testing.T) {
	cfg := defaultLoaderConfig()
	WithHostModuleName("custom_module")(&cfg)
	WithMaxLogSize(2048)(&cfg)
	WithMemoryLimitPages(16)(&cfg)
	WithoutWASI()(&cfg)
	WithLogger(nil)(&cfg)

	assert.Equal(t, "custom_module", cfg.hostModule)
	assert.Equal(t, uint32(2048), cfg.maxLogSize)
	assert.Equal(t, uint32(16), cfg.memoryPages)
	assert.False(t, cfg.wasi)
	assert.NotNil(t, cfg.logger)
}

func TestPackUnpackPtrLen(t *testing.T) {
	tests := []struct {
		ptr    uint32
		length uint32
	}{
		{0, 0},
		{1, 1},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{0x12345678, 0x9ABCDEF0},
		{100, 50},
	}

	for _, tt := range tests {
		packed := packPtrLen(tt.ptr, tt.length)
		gotPtr, gotLen := unpackPtrLen(packed)

		if gotPtr != tt.ptr {
			t.Errorf("unpackPtrLen(%x): ptr = %x, want %x", packed, gotPtr, tt.ptr)
		}
		if gotLen != tt.length {
			t.Errorf("unpackPtrLen(%x): len = %x, want %x", packed, gotLen, tt.length)
		}
	}
}
