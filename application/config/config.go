// Package config loads the host configuration and assembles the host
// components it describes.
package config

import (
	"os"
	"strings"

	"github.com/reglet-dev/dlhost/application/validation"
	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/reglet-dev/dlhost/infrastructure/parser"
)

// Environment variables that override the configuration file.
const (
	EnvPlugin      = "DLHOST_PLUGIN"
	EnvBackend     = "DLHOST_BACKEND"
	EnvLogLevel    = "DLHOST_LOG_LEVEL"
	EnvLogFormat   = "DLHOST_LOG_FORMAT"
	EnvMetricsAddr = "DLHOST_METRICS_ADDR"
)

type loadConfig struct {
	parser    ports.ConfigParser
	validator ports.ConfigValidator
	lookupEnv func(string) (string, bool)
}

// Option configures Load.
type Option func(*loadConfig)

// WithParser replaces the YAML parser.
func WithParser(p ports.ConfigParser) Option {
	return func(c *loadConfig) {
		c.parser = p
	}
}

// WithValidator replaces the schema and struct validator.
func WithValidator(v ports.ConfigValidator) Option {
	return func(c *loadConfig) {
		c.validator = v
	}
}

// WithEnv sets the environment lookup. Pass nil to ignore the environment.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(c *loadConfig) {
		c.lookupEnv = lookup
	}
}

// Load reads the configuration file at path (defaults only when path is
// empty), applies environment overrides and validates the result. Every
// failure is a *errors.ConfigError.
func Load(path string, opts ...Option) (*entities.HostConfig, error) {
	cfg := loadConfig{
		parser:    parser.NewYamlConfigParser(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.validator == nil {
		v, err := validation.NewConfigValidator()
		if err != nil {
			return nil, &errors.ConfigError{Source: path, Err: err}
		}
		cfg.validator = v
	}

	var data []byte
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, &errors.ConfigError{Source: path, Err: err}
		}
	}

	doc, err := cfg.parser.Document(data)
	if err != nil {
		return nil, &errors.ConfigError{Source: path, Err: err}
	}
	res, err := cfg.validator.ValidateDocument(doc)
	if err != nil {
		return nil, &errors.ConfigError{Source: path, Err: err}
	}
	if !res.Valid {
		return nil, &errors.ConfigError{Source: path, Problems: res.Errors}
	}

	hc, err := cfg.parser.Parse(data)
	if err != nil {
		return nil, &errors.ConfigError{Source: path, Err: err}
	}
	if cfg.lookupEnv != nil {
		ApplyEnv(hc, cfg.lookupEnv)
	}

	if res := cfg.validator.Validate(hc); !res.Valid {
		return nil, &errors.ConfigError{Source: path, Problems: res.Errors}
	}
	return hc, nil
}

// ApplyEnv overrides fields of cfg from the environment. Empty variables
// are ignored.
func ApplyEnv(cfg *entities.HostConfig, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvPlugin, &cfg.Plugin)
	set(EnvBackend, &cfg.Backend)
	set(EnvLogLevel, &cfg.Log.Level)
	set(EnvLogFormat, &cfg.Log.Format)
	set(EnvMetricsAddr, &cfg.Metrics.Addr)
}
