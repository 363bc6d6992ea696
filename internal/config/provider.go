// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// WorkDir overrides the working directory used for the implicit config
	// file lookup and for packaging.
	WorkDir string
	// Overrides are flag-level overrides applied with the highest
	// precedence, keyed by config key (e.g. "function.name").
	Overrides map[string]any
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type envFileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &envFileProvider{}
}

// Load reads configuration from the requested sources and validates it.
// When validation fails, the resolved Config is returned together with
// the error so display-only callers can show what was resolved.
func (p *envFileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return loadWithOptions(ctx, opts)
}
