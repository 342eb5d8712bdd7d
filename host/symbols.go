package host

import (
	"context"
	"fmt"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/domain/ports"
)

// ResolvedSymbol is an entry point resolved from a LoadedPlugin. It can only
// be invoked through the Host, which refuses it once its generation is no
// longer the live one.
type ResolvedSymbol struct {
	exchange   ports.ExchangeEntry
	diagnostic ports.DiagnosticEntry
	copyOut    ports.CopyOutEntry
	name       string
	kind       entities.SymbolKind
	generation uint64
}

// Name returns the exported name.
func (s ResolvedSymbol) Name() string { return s.name }

// Kind returns the role of the entry point.
func (s ResolvedSymbol) Kind() entities.SymbolKind { return s.kind }

// Generation returns the load generation the symbol was resolved under.
func (s ResolvedSymbol) Generation() uint64 { return s.generation }

// Info returns a serializable description of the symbol.
func (s ResolvedSymbol) Info() entities.SymbolInfo {
	return entities.SymbolInfo{Name: s.name, Kind: s.kind, Generation: s.generation}
}

func (s ResolvedSymbol) diagnose(ctx context.Context) (string, error) {
	msg, err := s.diagnostic.Diagnostic(ctx)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", s.name, err)
	}
	return msg, nil
}

// symbolTable holds the entry points of the live generation. The zero value
// is the empty table.
type symbolTable struct {
	exchange   *ResolvedSymbol
	diagnostic *ResolvedSymbol
	copyOut    *ResolvedSymbol
}

// resolveSymbols resolves the configured entry points from p. A missing
// exchange entry point fails the load; a missing optional one only leaves
// its slot empty.
func (h *Host) resolveSymbols(p *LoadedPlugin, gen uint64) (symbolTable, error) {
	var t symbolTable

	name := h.entryPoints.Exchange
	entry, err := p.image.ResolveExchange(name)
	if err != nil {
		return t, &errors.SymbolNotFoundError{Symbol: name, Path: p.Path, Err: err}
	}
	t.exchange = &ResolvedSymbol{
		exchange:   entry,
		name:       name,
		kind:       entities.SymbolExchange,
		generation: gen,
	}

	if name = h.entryPoints.Diagnostic; name != "" {
		diag, err := p.image.ResolveDiagnostic(name)
		if err != nil {
			h.logger.Info("Host: diagnostic entry point unavailable", "symbol", name, "path", p.Path, "error", err)
		} else {
			t.diagnostic = &ResolvedSymbol{
				diagnostic: diag,
				name:       name,
				kind:       entities.SymbolDiagnostic,
				generation: gen,
			}
		}
	}

	if name = h.entryPoints.CopyOut; name != "" {
		t.copyOut = h.resolveCopyOut(p, name, gen)
	}
	return t, nil
}

// resolveCopyOut returns nil when the backend or the image lacks the
// copy-out entry point.
func (h *Host) resolveCopyOut(p *LoadedPlugin, name string, gen uint64) *ResolvedSymbol {
	img, ok := p.image.(ports.CopyOutImage)
	if !ok {
		h.logger.Debug("Host: backend has no copy-out support", "backend", p.Backend)
		return nil
	}
	entry, err := img.ResolveCopyOut(name)
	if err != nil {
		h.logger.Debug("Host: copy-out entry point unavailable", "symbol", name, "path", p.Path, "error", err)
		return nil
	}
	return &ResolvedSymbol{
		copyOut:    entry,
		name:       name,
		kind:       entities.SymbolCopyOut,
		generation: gen,
	}
}

func (t symbolTable) lookup(kind entities.SymbolKind) (*ResolvedSymbol, bool) {
	switch kind {
	case entities.SymbolExchange:
		return t.exchange, t.exchange != nil
	case entities.SymbolDiagnostic:
		return t.diagnostic, t.diagnostic != nil
	case entities.SymbolCopyOut:
		return t.copyOut, t.copyOut != nil
	default:
		return nil, false
	}
}

func (t symbolTable) empty() bool {
	return t.exchange == nil && t.diagnostic == nil && t.copyOut == nil
}

func (t symbolTable) infos() []entities.SymbolInfo {
	var out []entities.SymbolInfo
	for _, s := range []*ResolvedSymbol{t.exchange, t.diagnostic, t.copyOut} {
		if s != nil {
			out = append(out, s.Info())
		}
	}
	return out
}
