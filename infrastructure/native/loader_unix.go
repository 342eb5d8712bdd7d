//go:build darwin || freebsd || linux

package native

import (
	"context"
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/reglet-dev/dlhost/domain/ports"
)

type image struct {
	path   string
	mu     sync.Mutex
	handle uintptr
}

func openImage(path string, cfg loaderConfig) (*image, error) {
	mode := purego.RTLD_NOW | purego.RTLD_LOCAL
	if cfg.lazy {
		mode = purego.RTLD_LAZY | purego.RTLD_LOCAL
	}
	h, err := purego.Dlopen(path, mode)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", path, err)
	}
	return &image{path: path, handle: h}, nil
}

func (i *image) lookup(name string) (uintptr, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.handle == 0 {
		return 0, ports.ErrImageClosed
	}
	sym, err := purego.Dlsym(i.handle, name)
	if err != nil || sym == 0 {
		return 0, fmt.Errorf("%w: %s in %s: %v", ports.ErrSymbolMissing, name, i.path, err)
	}
	return sym, nil
}

func (i *image) ResolveExchange(name string) (ports.ExchangeEntry, error) {
	sym, err := i.lookup(name)
	if err != nil {
		return nil, err
	}
	var fn func(data *byte, capacity uintptr, override int32) uintptr
	purego.RegisterFunc(&fn, sym)
	return exchangeFunc(fn), nil
}

func (i *image) ResolveDiagnostic(name string) (ports.DiagnosticEntry, error) {
	sym, err := i.lookup(name)
	if err != nil {
		return nil, err
	}
	var fn func() string
	purego.RegisterFunc(&fn, sym)
	return diagnosticFunc(fn), nil
}

func (i *image) ResolveCopyOut(name string) (ports.CopyOutEntry, error) {
	sym, err := i.lookup(name)
	if err != nil {
		return nil, err
	}
	return newCopyOut(sym)
}

func (i *image) Close(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.handle == 0 {
		return ports.ErrImageClosed
	}
	h := i.handle
	i.handle = 0
	if err := purego.Dlclose(h); err != nil {
		return fmt.Errorf("dlclose %s: %w", i.path, err)
	}
	return nil
}

type exchangeFunc func(data *byte, capacity uintptr, override int32) uintptr

func (f exchangeFunc) Exchange(_ context.Context, region []byte, override bool) (uint64, error) {
	var ov int32
	if override {
		ov = 1
	}
	return uint64(f(&region[0], uintptr(len(region)), ov)), nil
}

type diagnosticFunc func() string

func (f diagnosticFunc) Diagnostic(context.Context) (string, error) {
	return f(), nil
}
