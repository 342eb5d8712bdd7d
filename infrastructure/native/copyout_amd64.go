//go:build (darwin || freebsd || linux || windows) && amd64

package native

import (
	"context"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/reglet-dev/dlhost/domain/ports"
)

// retData mirrors the C result of a copy-out entry point:
//
//	struct ret_data {
//	    void  *data;
//	    size_t data_size;
//	    void (*release)(void *data);
//	};
type retData struct {
	data    uintptr
	size    uintptr
	release uintptr
}

type copyOutFunc uintptr

func newCopyOut(fn uintptr) (ports.CopyOutEntry, error) {
	return copyOutFunc(fn), nil
}

// CopyOut implements ports.CopyOutEntry. retData is 24 bytes, so both the
// System V and the Windows x64 ABI return it through a hidden pointer passed
// as the first integer argument.
func (f copyOutFunc) CopyOut(_ context.Context, input []byte, limit int) ([]byte, uint64, error) {
	var ret retData
	var in *byte
	if len(input) > 0 {
		in = &input[0]
	}
	purego.SyscallN(uintptr(f), uintptr(unsafe.Pointer(&ret)), uintptr(unsafe.Pointer(in)), uintptr(len(input)))

	if ret.data == 0 {
		return nil, 0, nil
	}
	if ret.release != 0 {
		defer purego.SyscallN(ret.release, ret.data)
	}

	size := uint64(ret.size)
	if size > uint64(limit) {
		return nil, size, nil
	}
	reply := make([]byte, ret.size)
	copy(reply, unsafe.Slice((*byte)(unsafe.Pointer(ret.data)), ret.size)) //nolint:govet // buffer owned by the plugin until release
	return reply, size, nil
}
