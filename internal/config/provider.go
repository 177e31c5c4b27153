// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions selects the moduni configuration file to read. With both
// fields empty the file is config.cue under the user config directory.
type LoadOptions struct {
	// ConfigFilePath is the --config flag; it wins over ConfigDirPath.
	ConfigFilePath string
	// ConfigDirPath replaces <user config dir>/moduni, mostly in tests.
	ConfigDirPath string
}

// Provider loads the developer identity and the repository managers.
// The CLI takes one through Dependencies so tests can serve a fixed Config.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type fileProvider struct{}

// NewProvider returns the Provider that reads config.cue, applies
// MODUNI_* environment overrides and fills in defaults.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load implements Provider. A missing default file yields the defaults;
// a missing ConfigFilePath is an error.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
