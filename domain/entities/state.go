package entities

import "fmt"

// State is the lifecycle state of the host's single plugin slot.
type State int

const (
	// StateUnloaded means no plugin image is loaded. It is the initial state
	// and is reachable from any other state through Unload.
	StateUnloaded State = iota

	// StateLoaded means exactly one plugin image is loaded and its required
	// entry points are resolved.
	StateLoaded
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
