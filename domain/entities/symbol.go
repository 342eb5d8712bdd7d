package entities

// SymbolKind identifies the role an entry point plays in the exchange contract.
type SymbolKind string

const (
	// SymbolExchange is the required data-exchange entry point.
	SymbolExchange SymbolKind = "exchange"

	// SymbolDiagnostic is the optional greeting entry point used as a
	// reachability check.
	SymbolDiagnostic SymbolKind = "diagnostic"

	// SymbolCopyOut is the optional copy-out entry point. It returns a
	// buffer the plugin allocated together with the callback that frees it.
	SymbolCopyOut SymbolKind = "copy_out"
)

// Default entry point names exported by plugins.
const (
	DefaultExchangeSymbol   = "exchange_inplace"
	DefaultDiagnosticSymbol = "hello"
	DefaultCopyOutSymbol    = "exchange"
)

// EntryPoints names the symbols the host resolves from every plugin image.
type EntryPoints struct {
	// Exchange is required. A plugin that does not export it fails to load.
	Exchange string `json:"exchange,omitempty" yaml:"exchange" validate:"required" jsonschema:"minLength=1"`

	// Diagnostic is optional. When empty or absent from the image the
	// reachability check is unavailable but loading still succeeds.
	Diagnostic string `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`

	// CopyOut is optional, like Diagnostic.
	CopyOut string `json:"copy_out,omitempty" yaml:"copy_out,omitempty"`
}

// DefaultEntryPoints returns the entry point names used by the reference plugins.
func DefaultEntryPoints() EntryPoints {
	return EntryPoints{
		Exchange:   DefaultExchangeSymbol,
		Diagnostic: DefaultDiagnosticSymbol,
		CopyOut:    DefaultCopyOutSymbol,
	}
}

// Name returns the configured name of the entry point of the given kind.
func (e EntryPoints) Name(kind SymbolKind) string {
	switch kind {
	case SymbolExchange:
		return e.Exchange
	case SymbolDiagnostic:
		return e.Diagnostic
	case SymbolCopyOut:
		return e.CopyOut
	default:
		return ""
	}
}
