package entities

import (
	"fmt"
	"time"
)

// Backend names accepted in HostConfig.Backend.
const (
	BackendNative = "native"
	BackendWasm   = "wasm"
)

// HostConfig is the declarative configuration of a plugin host, as read from
// a YAML file.
type HostConfig struct {
	Plugin      string         `yaml:"plugin" json:"plugin,omitempty" jsonschema_description:"Path of the plugin image to load"`
	Backend     string         `yaml:"backend" json:"backend,omitempty" validate:"oneof=native wasm" jsonschema:"enum=native,enum=wasm,default=native"`
	LazyBinding bool           `yaml:"lazy_binding" json:"lazy_binding,omitempty" jsonschema_description:"Defer native symbol binding until first use"`
	EntryPoints EntryPoints    `yaml:"entry_points" json:"entry_points,omitempty"`
	Exchange    ExchangeConfig `yaml:"exchange" json:"exchange,omitempty"`
	Policy      PolicyConfig   `yaml:"policy" json:"policy,omitempty"`
	Log         LogConfig      `yaml:"log" json:"log,omitempty"`
	Metrics     MetricsConfig  `yaml:"metrics" json:"metrics,omitempty"`
	Wasm        WasmConfig     `yaml:"wasm" json:"wasm,omitempty"`
	Wait        string         `yaml:"wait" json:"wait,omitempty" validate:"omitempty,duration" jsonschema_description:"How long to retry while the plugin image does not exist yet (Go duration)"`
}

// ExchangeConfig describes the default buffer exchange.
type ExchangeConfig struct {
	Input    string `yaml:"input" json:"input,omitempty" jsonschema_description:"Bytes seeded into the buffer before the call"`
	Capacity int    `yaml:"capacity" json:"capacity,omitempty" validate:"gt=0" jsonschema:"minimum=1,default=4096"`
	Override bool   `yaml:"override" json:"override,omitempty"`

	MaxCapacity int `yaml:"max_capacity" json:"max_capacity,omitempty" validate:"gte=0" jsonschema:"minimum=0" jsonschema_description:"Largest buffer capacity the host allocates; 0 uses the built-in limit"`
}

// Limit returns the effective capacity limit.
func (c ExchangeConfig) Limit() int {
	if c.MaxCapacity > 0 {
		return c.MaxCapacity
	}
	return DefaultMaxCapacity
}

// PolicyConfig restricts which image paths may be loaded.
type PolicyConfig struct {
	AllowedPaths    []string `yaml:"allowed_paths" json:"allowed_paths,omitempty" validate:"dive,glob" jsonschema_description:"Glob patterns of loadable image paths; empty allows every path"`
	ResolveSymlinks bool     `yaml:"resolve_symlinks" json:"resolve_symlinks,omitempty" jsonschema:"default=true"`
}

// LogConfig configures the host logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR" jsonschema:"enum=debug,enum=info,enum=warn,enum=warning,enum=error"`
	Format string `yaml:"format" json:"format,omitempty" validate:"omitempty,oneof=text json" jsonschema:"enum=text,enum=json"`
	Source bool   `yaml:"source" json:"source,omitempty"`
}

// MetricsConfig configures the metrics and health endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr,omitempty" validate:"omitempty,hostname_port" jsonschema_description:"Listen address of the metrics and health endpoint; empty disables it"`
}

// WasmConfig tunes the wasm backend.
type WasmConfig struct {
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages,omitempty" validate:"lte=65536" jsonschema:"maximum=65536"`
	DisableWASI      bool   `yaml:"disable_wasi" json:"disable_wasi,omitempty"`
}

// DefaultHostConfig returns the configuration used when no file is given.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		Backend:     BackendNative,
		EntryPoints: DefaultEntryPoints(),
		Exchange: ExchangeConfig{
			Capacity: 4096,
			Override: true,
		},
		Policy: PolicyConfig{ResolveSymlinks: true},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WaitTimeout parses Wait. An empty value means no waiting.
func (c HostConfig) WaitTimeout() (time.Duration, error) {
	if c.Wait == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Wait)
	if err != nil {
		return 0, fmt.Errorf("invalid wait %q: %w", c.Wait, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid wait %q: negative duration", c.Wait)
	}
	return d, nil
}
