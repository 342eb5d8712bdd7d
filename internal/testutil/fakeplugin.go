package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/ports"
)

// ExchangeFunc is the behavior of a fake exchange entry point. It receives
// the region exactly as a native plugin would see it.
type ExchangeFunc func(region []byte, override bool) uint64

// CopyOutFunc is the behavior of a fake copy-out entry point. A nil reply
// stands for a null buffer.
type CopyOutFunc func(input []byte) []byte

// FakePlugin describes one image a FakeLoader can open.
type FakePlugin struct {
	// Exchange is the exchange behavior. Nil means the image does not
	// export the exchange entry point.
	Exchange ExchangeFunc

	// Greeting is returned by the diagnostic entry point.
	Greeting string

	// ExchangeSymbol overrides the exported exchange name
	// (default entities.DefaultExchangeSymbol).
	ExchangeSymbol string

	// OpenErr makes Open fail with this error.
	OpenErr error

	// CopyOut is the copy-out behavior. Nil means the image does not
	// export the copy-out entry point.
	CopyOut CopyOutFunc

	// NoDiagnostic hides the diagnostic entry point.
	NoDiagnostic bool
}

// FakeLoader is an in-memory ports.ImageLoader with call counters. It lets
// host tests observe every crossing into "foreign" code.
type FakeLoader struct {
	plugins map[string]*FakePlugin

	mu              sync.Mutex
	opens           int
	closes          int
	doubleCloses    int
	useAfterClose   int
	exchangeCalls   int
	diagnosticCalls int
	copyOutCalls    int
	allocated       int
	releases        int
	live            map[*FakeImage]struct{}
	closed          bool
}

var _ ports.ImageLoader = (*FakeLoader)(nil)

// NewFakeLoader returns a loader that knows no paths yet.
func NewFakeLoader() *FakeLoader {
	return &FakeLoader{
		plugins: make(map[string]*FakePlugin),
		live:    make(map[*FakeImage]struct{}),
	}
}

// Register makes path loadable.
func (l *FakeLoader) Register(path string, p *FakePlugin) *FakeLoader {
	l.plugins[path] = p
	return l
}

// Name implements ports.ImageLoader.
func (l *FakeLoader) Name() string { return "fake" }

// Open implements ports.ImageLoader.
func (l *FakeLoader) Open(_ context.Context, path string) (ports.Image, error) {
	p, ok := l.plugins[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrImageNotFound, path)
	}
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.opens++
	img := &FakeImage{loader: l, plugin: p, path: path}
	l.live[img] = struct{}{}
	return img, nil
}

// Close implements ports.ImageLoader.
func (l *FakeLoader) Close(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Opens returns how many images were opened.
func (l *FakeLoader) Opens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens
}

// Closes returns how many images were released.
func (l *FakeLoader) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// DoubleCloses returns how many times an already released image was closed again.
func (l *FakeLoader) DoubleCloses() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doubleCloses
}

// UseAfterClose returns how many entry point calls hit a released image.
func (l *FakeLoader) UseAfterClose() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.useAfterClose
}

// ExchangeCalls returns how many times any exchange entry point ran.
func (l *FakeLoader) ExchangeCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exchangeCalls
}

// DiagnosticCalls returns how many times any diagnostic entry point ran.
func (l *FakeLoader) DiagnosticCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.diagnosticCalls
}

// CopyOutCalls returns how many times any copy-out entry point ran.
func (l *FakeLoader) CopyOutCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copyOutCalls
}

// Allocated returns how many non-null replies copy-out entry points handed
// out.
func (l *FakeLoader) Allocated() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allocated
}

// Releases returns how many times the host called a release callback.
func (l *FakeLoader) Releases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releases
}

// LiveImages returns the number of opened, not yet released images.
func (l *FakeLoader) LiveImages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// Closed reports whether the loader itself was shut down.
func (l *FakeLoader) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// FakeImage is an image opened by FakeLoader.
type FakeImage struct {
	loader   *FakeLoader
	plugin   *FakePlugin
	path     string
	released bool
}

// ResolveExchange implements ports.Image.
func (i *FakeImage) ResolveExchange(name string) (ports.ExchangeEntry, error) {
	want := i.plugin.ExchangeSymbol
	if want == "" {
		want = entities.DefaultExchangeSymbol
	}
	if i.plugin.Exchange == nil || name != want {
		return nil, fmt.Errorf("%w: %s in %s", ports.ErrSymbolMissing, name, i.path)
	}
	return fakeExchange{image: i}, nil
}

// ResolveDiagnostic implements ports.Image.
func (i *FakeImage) ResolveDiagnostic(name string) (ports.DiagnosticEntry, error) {
	if i.plugin.NoDiagnostic || name != entities.DefaultDiagnosticSymbol {
		return nil, fmt.Errorf("%w: %s in %s", ports.ErrSymbolMissing, name, i.path)
	}
	return fakeDiagnostic{image: i}, nil
}

// ResolveCopyOut implements ports.CopyOutImage.
func (i *FakeImage) ResolveCopyOut(name string) (ports.CopyOutEntry, error) {
	if i.plugin.CopyOut == nil || name != entities.DefaultCopyOutSymbol {
		return nil, fmt.Errorf("%w: %s in %s", ports.ErrSymbolMissing, name, i.path)
	}
	return fakeCopyOut{image: i}, nil
}

// Close implements ports.Image.
func (i *FakeImage) Close(context.Context) error {
	l := i.loader
	l.mu.Lock()
	defer l.mu.Unlock()
	if i.released {
		l.doubleCloses++
		return ports.ErrImageClosed
	}
	i.released = true
	l.closes++
	delete(l.live, i)
	return nil
}

// enter records an entry point call and reports whether the image is live.
func (i *FakeImage) enter(kind entities.SymbolKind) bool {
	l := i.loader
	l.mu.Lock()
	defer l.mu.Unlock()
	if i.released {
		l.useAfterClose++
		return false
	}
	switch kind {
	case entities.SymbolExchange:
		l.exchangeCalls++
	case entities.SymbolDiagnostic:
		l.diagnosticCalls++
	case entities.SymbolCopyOut:
		l.copyOutCalls++
	}
	return true
}

type fakeExchange struct{ image *FakeImage }

func (f fakeExchange) Exchange(_ context.Context, region []byte, override bool) (uint64, error) {
	if !f.image.enter(entities.SymbolExchange) {
		return 0, ports.ErrImageClosed
	}
	return f.image.plugin.Exchange(region, override), nil
}

type fakeDiagnostic struct{ image *FakeImage }

func (f fakeDiagnostic) Diagnostic(context.Context) (string, error) {
	if !f.image.enter(entities.SymbolDiagnostic) {
		return "", ports.ErrImageClosed
	}
	return f.image.plugin.Greeting, nil
}

type fakeCopyOut struct{ image *FakeImage }

// CopyOut follows the native contract: the reply counts as plugin memory
// until it is released, and release runs once per non-null reply.
func (f fakeCopyOut) CopyOut(_ context.Context, input []byte, limit int) ([]byte, uint64, error) {
	if !f.image.enter(entities.SymbolCopyOut) {
		return nil, 0, ports.ErrImageClosed
	}
	owned := f.image.plugin.CopyOut(input)
	if owned == nil {
		return nil, 0, nil
	}

	l := f.image.loader
	l.mu.Lock()
	l.allocated++
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.releases++
		l.mu.Unlock()
	}()

	size := uint64(len(owned))
	if len(owned) > limit {
		return nil, size, nil
	}
	return append([]byte{}, owned...), size, nil
}

// Reply returns prefix followed by the input, in a fresh buffer, like the
// reference copy-out plugin.
func Reply(prefix string) CopyOutFunc {
	return func(input []byte) []byte {
		return append([]byte(prefix), input...)
	}
}

// WriteContent writes content in override mode and reports its length in
// both modes, like a well-behaved plugin. It declines (returns 0) when the
// region is too small to hold content.
func WriteContent(content []byte) ExchangeFunc {
	return func(region []byte, override bool) uint64 {
		if !override {
			return uint64(len(content))
		}
		if len(region) < len(content) {
			return 0
		}
		return uint64(copy(region, content))
	}
}

// ReportNeeded reports n bytes needed in probe mode and declines in
// override mode.
func ReportNeeded(n uint64) ExchangeFunc {
	return func(_ []byte, override bool) uint64 {
		if override {
			return 0
		}
		return n
	}
}

// FixedCount returns n without touching the region, whatever the mode.
func FixedCount(n uint64) ExchangeFunc {
	return func([]byte, bool) uint64 { return n }
}

// FillAll overwrites the whole region with v in both modes and returns its
// length. It breaks the read-only contract on purpose.
func FillAll(v byte) ExchangeFunc {
	return func(region []byte, _ bool) uint64 {
		for i := range region {
			region[i] = v
		}
		return uint64(len(region))
	}
}
