package log

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"
)

// LogMessageWire is the JSON wire format of a log record sent by a wasm
// plugin through the log_message host function.
type LogMessageWire struct {
	Timestamp time.Time     `json:"timestamp,omitzero"`
	Attrs     []LogAttrWire `json:"attrs,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
}

// LogAttrWire represents a single slog attribute for wire transfer.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "uint64", "bool", "float64", "time", "duration", "json", "error", "any"
	Value string `json:"value"` // String representation of the value
}

// FromWire converts a LogAttrWire back to a slog.Attr. Values that do not
// parse as their declared type are kept as strings.
func FromWire(w LogAttrWire) slog.Attr {
	switch w.Type {
	case "int64":
		if v, err := strconv.ParseInt(w.Value, 10, 64); err == nil {
			return slog.Int64(w.Key, v)
		}
	case "uint64":
		if v, err := strconv.ParseUint(w.Value, 10, 64); err == nil {
			return slog.Uint64(w.Key, v)
		}
	case "bool":
		if v, err := strconv.ParseBool(w.Value); err == nil {
			return slog.Bool(w.Key, v)
		}
	case "float64":
		if v, err := strconv.ParseFloat(w.Value, 64); err == nil {
			return slog.Float64(w.Key, v)
		}
	case "time":
		if v, err := time.Parse(time.RFC3339Nano, w.Value); err == nil {
			return slog.Time(w.Key, v)
		}
	case "duration":
		if v, err := time.ParseDuration(w.Value); err == nil {
			return slog.Duration(w.Key, v)
		}
	case "json":
		return slog.Any(w.Key, json.RawMessage(w.Value))
	}
	return slog.String(w.Key, w.Value)
}

// SlogLevel maps the wire level (slog.Level.String() form, case-insensitive)
// to a slog level. Unknown levels log at info.
func (m LogMessageWire) SlogLevel() slog.Level {
	l, _ := ParseLevel(m.Level)
	return l
}

// SlogAttrs converts the wire attributes.
func (m LogMessageWire) SlogAttrs() []slog.Attr {
	out := make([]slog.Attr, 0, len(m.Attrs))
	for _, a := range m.Attrs {
		out = append(out, FromWire(a))
	}
	return out
}
