// Package policy decides which plugin image paths the host may load.
package policy

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/reglet-dev/dlhost/domain/ports"
)

// policyConfig holds configuration for the path policy.
type policyConfig struct {
	cwd             string              // Working directory for relative path resolution
	resolveSymlinks bool                // Whether to resolve symlinks before matching
	denialHandler   ports.DenialHandler // Handler invoked on policy denials
}

func defaultPolicyConfig() policyConfig {
	return policyConfig{
		resolveSymlinks: true,
		denialHandler:   &LogDenialHandler{},
	}
}

// PolicyOption configures the PathPolicy.
type PolicyOption func(*policyConfig)

// WithWorkingDirectory sets the directory relative paths are resolved
// against. When empty, the process working directory is used.
func WithWorkingDirectory(cwd string) PolicyOption {
	return func(c *policyConfig) {
		c.cwd = cwd
	}
}

// WithSymlinkResolution enables/disables symlink resolution.
// Default is true. Without it a symlink inside an allowed directory can point
// the loader anywhere.
func WithSymlinkResolution(enabled bool) PolicyOption {
	return func(c *policyConfig) {
		c.resolveSymlinks = enabled
	}
}

// WithDenialHandler sets the denial handler.
func WithDenialHandler(h ports.DenialHandler) PolicyOption {
	return func(c *policyConfig) {
		c.denialHandler = h
	}
}

// PathPolicy allows image paths matching at least one doublestar pattern.
// A policy without patterns allows every path.
type PathPolicy struct {
	config   policyConfig
	patterns []string
}

var _ ports.PathPolicy = (*PathPolicy)(nil)

// NewPathPolicy compiles the allowlist. Patterns are matched against
// absolute, cleaned paths, so they should be absolute too.
func NewPathPolicy(patterns []string, opts ...PolicyOption) (*PathPolicy, error) {
	cfg := defaultPolicyConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &PathPolicy{config: cfg}
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(filepath.Clean(pattern))
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid path pattern %q", pattern)
		}
		p.patterns = append(p.patterns, pattern)
	}
	return p, nil
}

// Patterns returns the compiled allowlist.
func (p *PathPolicy) Patterns() []string {
	out := make([]string, len(p.patterns))
	copy(out, p.patterns)
	return out
}

// Allow reports whether path may be loaded.
func (p *PathPolicy) Allow(path string) bool {
	_, ok := p.Resolve(path)
	return ok
}

// Resolve implements ports.PathPolicy. An empty allowlist returns path
// unchanged. Otherwise the returned path is absolute, cleaned and, with
// symlink resolution on, the symlink target that matched the allowlist.
func (p *PathPolicy) Resolve(path string) (string, bool) {
	if len(p.patterns) == 0 {
		return path, true
	}

	resolved, ok := p.normalize(path)
	if !ok {
		p.config.denialHandler.OnDenial("path", path, "cannot resolve path")
		return "", false
	}

	for _, pattern := range p.patterns {
		if matched, _ := doublestar.Match(pattern, resolved); matched {
			return filepath.FromSlash(resolved), true
		}
	}

	p.config.denialHandler.OnDenial("path", resolved, "path not allowed")
	return "", false
}

func (p *PathPolicy) normalize(path string) (string, bool) {
	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		if p.config.cwd != "" {
			path = filepath.Join(p.config.cwd, path)
		} else {
			abs, err := filepath.Abs(path)
			if err != nil {
				return "", false
			}
			path = abs
		}
	}

	if p.config.resolveSymlinks {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}
	}
	return filepath.ToSlash(path), true
}
