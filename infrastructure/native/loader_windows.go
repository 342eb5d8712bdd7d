//go:build windows

package native

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/reglet-dev/dlhost/domain/ports"
	"golang.org/x/sys/windows"
)

type image struct {
	path string
	mu   sync.Mutex
	dll  *windows.DLL
}

func openImage(path string, cfg loaderConfig) (*image, error) {
	if cfg.lazy {
		cfg.logger.Debug("native: lazy binding is not supported on windows", "path", path)
	}
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, fmt.Errorf("LoadLibrary %s: %w", path, err)
	}
	return &image{path: path, dll: dll}, nil
}

func (i *image) lookup(name string) (*windows.Proc, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dll == nil {
		return nil, ports.ErrImageClosed
	}
	proc, err := i.dll.FindProc(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %v", ports.ErrSymbolMissing, name, i.path, err)
	}
	return proc, nil
}

func (i *image) ResolveExchange(name string) (ports.ExchangeEntry, error) {
	proc, err := i.lookup(name)
	if err != nil {
		return nil, err
	}
	return exchangeProc{proc: proc}, nil
}

func (i *image) ResolveDiagnostic(name string) (ports.DiagnosticEntry, error) {
	proc, err := i.lookup(name)
	if err != nil {
		return nil, err
	}
	return diagnosticProc{proc: proc}, nil
}

func (i *image) ResolveCopyOut(name string) (ports.CopyOutEntry, error) {
	proc, err := i.lookup(name)
	if err != nil {
		return nil, err
	}
	return newCopyOut(proc.Addr())
}

func (i *image) Close(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dll == nil {
		return ports.ErrImageClosed
	}
	dll := i.dll
	i.dll = nil
	if err := dll.Release(); err != nil {
		return fmt.Errorf("FreeLibrary %s: %w", i.path, err)
	}
	return nil
}

type exchangeProc struct{ proc *windows.Proc }

func (e exchangeProc) Exchange(_ context.Context, region []byte, override bool) (uint64, error) {
	var ov uintptr
	if override {
		ov = 1
	}
	r1, _, _ := e.proc.Call(uintptr(unsafe.Pointer(&region[0])), uintptr(len(region)), ov)
	return uint64(r1), nil
}

type diagnosticProc struct{ proc *windows.Proc }

func (d diagnosticProc) Diagnostic(context.Context) (string, error) {
	r1, _, _ := d.proc.Call()
	if r1 == 0 {
		return "", nil
	}
	return windows.BytePtrToString((*byte)(unsafe.Pointer(r1))), nil //nolint:govet // C string owned by the plugin
}
