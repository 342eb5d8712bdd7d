package entities

import "time"

// SymbolInfo describes one resolved entry point.
type SymbolInfo struct {
	Name       string     `json:"name"`
	Kind       SymbolKind `json:"kind"`
	Generation uint64     `json:"generation"`
}

// Status is a point-in-time snapshot of the host's plugin slot.
type Status struct {
	LoadedAt   time.Time    `json:"loaded_at,omitzero"`
	Path       string       `json:"path,omitempty"`
	Backend    string       `json:"backend,omitempty"`
	Digest     string       `json:"digest,omitempty"`
	Symbols    []SymbolInfo `json:"symbols,omitempty"`
	Generation uint64       `json:"generation"`
	State      State        `json:"state"`
}
