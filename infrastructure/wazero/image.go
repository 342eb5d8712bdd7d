package wazero

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var (
	exchangeParams = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}
	exchangeResult = []api.ValueType{api.ValueTypeI32}
	helloResult    = []api.ValueType{api.ValueTypeI64}
)

// image is one instantiated wasm plugin.
type image struct {
	module   api.Module
	compiled wazero.CompiledModule
	path     string

	mu     sync.Mutex
	closed bool
}

func (i *image) export(name string, params, results []api.ValueType) (api.Function, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, ports.ErrImageClosed
	}

	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s in %s", ports.ErrSymbolMissing, name, i.path)
	}
	def := fn.Definition()
	if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), results) {
		return nil, fmt.Errorf("%w: %s in %s has an unexpected signature",
			ports.ErrSymbolMissing, name, i.path)
	}
	return fn, nil
}

// ResolveExchange implements ports.Image.
func (i *image) ResolveExchange(name string) (ports.ExchangeEntry, error) {
	fn, err := i.export(name, exchangeParams, exchangeResult)
	if err != nil {
		return nil, err
	}
	if i.module.Memory() == nil {
		return nil, fmt.Errorf("%w: memory in %s", ports.ErrSymbolMissing, i.path)
	}
	allocate, err := i.export("allocate", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	if err != nil {
		return nil, err
	}
	// deallocate is optional.
	deallocate, _ := i.export("deallocate", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{})

	return &exchangeEntry{
		image:      i,
		fn:         fn,
		allocate:   allocate,
		deallocate: deallocate,
	}, nil
}

// ResolveDiagnostic implements ports.Image.
func (i *image) ResolveDiagnostic(name string) (ports.DiagnosticEntry, error) {
	fn, err := i.export(name, []api.ValueType{}, helloResult)
	if err != nil {
		return nil, err
	}
	return &diagnosticEntry{image: i, fn: fn}, nil
}

// Close implements ports.Image.
func (i *image) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ports.ErrImageClosed
	}
	i.closed = true

	err := i.module.Close(ctx)
	if cerr := i.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

type exchangeEntry struct {
	image      *image
	fn         api.Function
	allocate   api.Function
	deallocate api.Function
}

// Exchange implements ports.ExchangeEntry.
func (e *exchangeEntry) Exchange(ctx context.Context, region []byte, override bool) (uint64, error) {
	if uint64(len(region)) > math.MaxUint32 {
		return 0, fmt.Errorf("region of %d bytes does not fit in 32-bit guest memory", len(region))
	}
	capacity := uint32(len(region)) //nolint:gosec // G115: checked above
	ctx = withImagePath(ctx, e.image.path)
	mem := e.image.module.Memory()

	results, err := e.allocate.Call(ctx, api.EncodeU32(capacity))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate in guest: %w", err)
	}
	ptr := api.DecodeU32(results[0])
	if e.deallocate != nil {
		defer func() {
			_, _ = e.deallocate.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(capacity))
		}()
	}

	if !mem.Write(ptr, region) {
		return 0, fmt.Errorf("failed to write %d bytes to guest memory at %d", capacity, ptr)
	}

	var flag uint32
	if override {
		flag = 1
	}
	results, err = e.fn.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(capacity), api.EncodeU32(flag))
	if err != nil {
		return 0, err
	}
	count := api.DecodeU32(results[0])

	back := capacity
	if override {
		back = min(count, capacity)
	}
	data, ok := mem.Read(ptr, back)
	if !ok {
		return 0, fmt.Errorf("failed to read %d bytes from guest memory at %d", back, ptr)
	}
	copy(region, data)
	return uint64(count), nil
}

type diagnosticEntry struct {
	image *image
	fn    api.Function
}

// Diagnostic implements ports.DiagnosticEntry.
func (d *diagnosticEntry) Diagnostic(ctx context.Context) (string, error) {
	results, err := d.fn.Call(withImagePath(ctx, d.image.path))
	if err != nil {
		return "", err
	}
	ptr, length := unpackPtrLen(results[0])
	if ptr == 0 || length == 0 {
		return "", nil
	}
	data, ok := d.image.module.Memory().Read(ptr, length)
	if !ok {
		return "", fmt.Errorf("failed to read greeting from guest memory")
	}
	return string(data), nil
}
