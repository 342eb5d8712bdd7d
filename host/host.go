package host

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/reglet-dev/dlhost/infrastructure/native"
)

// ErrHostClosed is returned by Load after Close.
var ErrHostClosed = stdErrors.New("host is closed")

// ErrWrongSymbolKind is returned by Call for a symbol that is not an
// exchange entry point.
var ErrWrongSymbolKind = stdErrors.New("symbol is not an exchange entry point")

// Host is the plugin lifecycle manager. It owns at most one LoadedPlugin
// and the symbols resolved from it.
type Host struct {
	loader      ports.ImageLoader
	policy      ports.PathPolicy
	recorder    ports.Recorder
	logger      *slog.Logger
	handler     ExchangeHandler
	entryPoints entities.EntryPoints
	maxCapacity int
	fingerprint bool

	mu         sync.Mutex
	slot       *LoadedPlugin
	table      symbolTable
	generation uint64
	closed     bool
}

// New creates a Host in the Unloaded state.
func New(opts ...Option) (*Host, error) {
	cfg := defaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.entryPoints.Exchange == "" {
		return nil, fmt.Errorf("exchange entry point name must not be empty")
	}
	if cfg.maxCapacity <= 0 {
		return nil, fmt.Errorf("max capacity must be greater than zero")
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.loader == nil {
		cfg.loader = native.NewLoader(native.WithLogger(cfg.logger))
	}

	mw := []Middleware{PanicRecoveryMiddleware(), LoggingMiddleware(cfg.logger)}
	if cfg.recorder != nil {
		mw = append(mw, RecorderMiddleware(cfg.recorder))
	} else {
		cfg.recorder = ports.NopRecorder{}
	}
	mw = append(mw, cfg.middleware...)

	return &Host{
		loader:      cfg.loader,
		policy:      cfg.pathPolicy,
		recorder:    cfg.recorder,
		logger:      cfg.logger,
		handler:     chain(invokeExchange, mw...),
		entryPoints: cfg.entryPoints,
		maxCapacity: cfg.maxCapacity,
		fingerprint: cfg.fingerprint,
	}, nil
}

// Load opens the image at path and resolves its entry points. A loaded
// plugin is unloaded first, so a failed reload leaves the host Unloaded.
// On failure no partially loaded image survives.
func (h *Host) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHostClosed
	}
	if h.slot != nil {
		h.logger.InfoContext(ctx, "Host: replacing loaded plugin", "old", h.slot.Path, "new", path)
		h.unloadLocked(ctx)
	}

	p, err := h.open(ctx, path)
	if err != nil {
		h.logger.ErrorContext(ctx, "Host: load failed", "path", path, "error", err)
		h.recorder.RecordLoad(h.loader.Name(), h.generation, err)
		return err
	}

	gen := h.generation + 1
	table, err := h.resolveSymbols(p, gen)
	if err != nil {
		if cerr := p.release(ctx); cerr != nil {
			h.logger.WarnContext(ctx, "Host: releasing partially loaded image failed", "path", path, "error", cerr)
		}
		h.logger.ErrorContext(ctx, "Host: load failed", "path", path, "error", err)
		h.recorder.RecordLoad(h.loader.Name(), h.generation, err)
		return err
	}

	p.Generation = gen
	p.LoadedAt = time.Now()
	h.generation = gen
	h.slot = p
	h.table = table

	h.logger.InfoContext(ctx, "Host: plugin loaded",
		"path", path,
		"backend", p.Backend,
		"generation", gen,
		"digest", p.Digest,
		"diagnostic", table.diagnostic != nil,
	)
	h.recorder.RecordLoad(p.Backend, gen, nil)
	return nil
}

// Unload releases the loaded plugin. It always succeeds; unloading an
// empty slot is a no-op.
func (h *Host) Unload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unloadLocked(ctx)
	return nil
}

// unloadLocked clears the slot before releasing the image, so the image
// can only be released once.
func (h *Host) unloadLocked(ctx context.Context) {
	p := h.slot
	if p == nil {
		return
	}
	h.slot = nil
	h.table = symbolTable{}
	h.generation++

	if err := p.release(ctx); err != nil {
		h.logger.WarnContext(ctx, "Host: releasing plugin image failed", "path", p.Path, "error", err)
	}
	h.logger.InfoContext(ctx, "Host: plugin unloaded", "path", p.Path, "generation", h.generation)
	h.recorder.RecordUnload(h.generation)
}

// Exchange allocates a zeroed buffer of the given capacity and exchanges it
// with the plugin. Contents is a copy of the written bytes and is set only
// for successful override calls.
func (h *Host) Exchange(ctx context.Context, capacity int, override bool) (entities.ExchangeReply, error) {
	if err := ctx.Err(); err != nil {
		return entities.ExchangeReply{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sym, err := h.liveExchange()
	if err != nil {
		return entities.ExchangeReply{}, err
	}
	buf, err := h.newBuffer(capacity, override, nil)
	if err != nil {
		return entities.ExchangeReply{}, err
	}

	res, err := h.handler(ctx, *sym, buf)
	if err != nil {
		return entities.ExchangeReply{}, err
	}
	reply := entities.ExchangeReply{WrittenOrNeeded: res.Count}
	if override {
		reply.Contents = bytes.Clone(res.Contents)
	}
	return reply, nil
}

// ExchangeInput exchanges a fresh buffer of the given capacity, seeded with
// input, with the plugin. The result's Contents alias that buffer, which
// the host does not reuse.
func (h *Host) ExchangeInput(ctx context.Context, capacity int, override bool, input []byte) (entities.ExchangeResult, error) {
	if err := ctx.Err(); err != nil {
		return entities.ExchangeResult{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sym, err := h.liveExchange()
	if err != nil {
		return entities.ExchangeResult{}, err
	}
	buf, err := h.newBuffer(capacity, override, input)
	if err != nil {
		return entities.ExchangeResult{}, err
	}
	return h.handler(ctx, *sym, buf)
}

func (h *Host) checkCapacity(capacity int) error {
	if capacity > h.maxCapacity {
		return &errors.InvalidBufferError{
			Capacity: capacity,
			Err:      fmt.Errorf("%w of %d bytes", entities.ErrBufferTooLarge, h.maxCapacity),
		}
	}
	return nil
}

// newBuffer checks capacity against the limit before allocating.
func (h *Host) newBuffer(capacity int, override bool, input []byte) (*entities.ExchangeBuffer, error) {
	if err := h.checkCapacity(capacity); err != nil {
		return nil, err
	}
	buf, err := entities.NewExchangeBuffer(capacity, override)
	if err != nil {
		return nil, &errors.InvalidBufferError{Capacity: capacity, Err: err}
	}
	if len(input) > 0 {
		if err := buf.Seed(input); err != nil {
			return nil, &errors.InvalidBufferError{Capacity: capacity, Err: err}
		}
	}
	return buf, nil
}

// ExchangeBuffer exchanges a caller-owned buffer with the plugin. The
// buffer's Used length is updated in override mode. The result's Contents
// alias the buffer.
func (h *Host) ExchangeBuffer(ctx context.Context, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error) {
	if err := ctx.Err(); err != nil {
		return entities.ExchangeResult{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sym, err := h.liveExchange()
	if err != nil {
		return entities.ExchangeResult{}, err
	}
	return h.exchangeLocked(ctx, *sym, buf)
}

// Call invokes a previously resolved exchange symbol. A symbol resolved
// under another generation fails with a StaleSymbolError and no foreign
// code runs.
func (h *Host) Call(ctx context.Context, sym ResolvedSymbol, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error) {
	if err := ctx.Err(); err != nil {
		return entities.ExchangeResult{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkLive(sym); err != nil {
		return entities.ExchangeResult{}, err
	}
	if sym.kind != entities.SymbolExchange {
		return entities.ExchangeResult{}, fmt.Errorf("%w: %s is %s", ErrWrongSymbolKind, sym.name, sym.kind)
	}
	return h.exchangeLocked(ctx, sym, buf)
}

func (h *Host) exchangeLocked(ctx context.Context, sym ResolvedSymbol, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error) {
	if buf == nil || buf.Capacity() <= 0 {
		return entities.ExchangeResult{}, &errors.InvalidBufferError{Err: entities.ErrBufferCapacity}
	}
	if err := h.checkCapacity(buf.Capacity()); err != nil {
		return entities.ExchangeResult{}, err
	}
	return h.handler(ctx, sym, buf)
}

// Hello calls the diagnostic entry point.
func (h *Host) Hello(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.slot == nil {
		return "", &errors.NotLoadedError{Operation: "hello"}
	}
	sym, ok := h.table.lookup(entities.SymbolDiagnostic)
	if !ok {
		return "", &errors.SymbolNotFoundError{Symbol: h.entryPoints.Diagnostic, Path: h.slot.Path}
	}
	return sym.diagnose(ctx)
}

// CopyOut calls the copy-out entry point with input and returns a copy of
// the plugin's reply. The plugin's buffer is released before CopyOut
// returns. A null reply is an ExchangeDeclinedError; a reply larger than
// the capacity limit is a ProtocolViolationError and is not copied.
func (h *Host) CopyOut(ctx context.Context, input []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.slot == nil {
		return nil, &errors.NotLoadedError{Operation: "copy out"}
	}
	sym, ok := h.table.lookup(entities.SymbolCopyOut)
	if !ok {
		return nil, &errors.SymbolNotFoundError{Symbol: h.entryPoints.CopyOut, Path: h.slot.Path}
	}
	if err := h.checkCapacity(len(input)); err != nil {
		return nil, err
	}
	return h.copyOut(ctx, *sym, input)
}

// Symbol returns the live symbol of the given kind. The returned value stays
// usable with Call until the next Unload or Load.
func (h *Host) Symbol(kind entities.SymbolKind) (ResolvedSymbol, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.slot == nil {
		return ResolvedSymbol{}, &errors.NotLoadedError{Operation: "resolve " + string(kind)}
	}
	sym, ok := h.table.lookup(kind)
	if !ok {
		return ResolvedSymbol{}, &errors.SymbolNotFoundError{Symbol: h.entryPoints.Name(kind), Path: h.slot.Path}
	}
	return *sym, nil
}

// Loader returns the image loader the host owns.
func (h *Host) Loader() ports.ImageLoader { return h.loader }

// State returns the lifecycle state.
func (h *Host) State() entities.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.slot == nil {
		return entities.StateUnloaded
	}
	return entities.StateLoaded
}

// Generation returns the current generation counter.
func (h *Host) Generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

// Status returns a snapshot of the plugin slot.
func (h *Host) Status() entities.Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := entities.Status{Generation: h.generation, State: entities.StateUnloaded}
	if h.slot == nil {
		return st
	}
	st.State = entities.StateLoaded
	st.Path = h.slot.Path
	st.Backend = h.slot.Backend
	st.Digest = h.slot.Digest
	st.LoadedAt = h.slot.LoadedAt
	st.Symbols = h.table.infos()
	return st
}

// Close unloads the plugin and shuts down the loader. Load fails afterwards.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.unloadLocked(ctx)
	h.closed = true
	return h.loader.Close(ctx)
}

func (h *Host) liveExchange() (*ResolvedSymbol, error) {
	if h.slot == nil {
		return nil, &errors.NotLoadedError{Operation: "exchange"}
	}
	sym, ok := h.table.lookup(entities.SymbolExchange)
	if !ok {
		return nil, &errors.NotLoadedError{Operation: "exchange"}
	}
	return sym, nil
}

func (h *Host) checkLive(sym ResolvedSymbol) error {
	if h.slot == nil || sym.generation != h.generation || h.table.empty() {
		return &errors.StaleSymbolError{
			Symbol:            sym.name,
			SymbolGeneration:  sym.generation,
			CurrentGeneration: h.generation,
		}
	}
	return nil
}
