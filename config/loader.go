/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
)

// Loader reads raw configuration data into its DataProvider and then applies it
// to Config objects in two phases: defaults first for all of them, values after.
// Two-phase application lets one Config derive its defaults from another's.
type Loader struct {
	DataProvider DataProvider
}

// NewLoader creates a new configurations' loader.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{DataProvider: dp}
}

// NewDefaultLoader creates a new configurations loader with an ability to read values from the environment variables.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// LoadFromFile loads configuration values from file and sets them in configuration objects.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return fmt.Errorf("set data from file: %w", err)
	}
	return l.apply(cfgs)
}

// LoadFromReader loads configuration values from reader and sets them in configuration objects.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return fmt.Errorf("set data from reader: %w", err)
	}
	return l.apply(cfgs)
}

// providerFor narrows the loader's data provider to the Config's key prefix, if it declares one.
func (l *Loader) providerFor(cfg Config) DataProvider {
	if kpHolder, ok := cfg.(KeyPrefixProvider); ok && kpHolder.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(l.DataProvider, kpHolder.KeyPrefix())
	}
	return l.DataProvider
}

func (l *Loader) apply(cfgs []Config) error {
	providers := make([]DataProvider, len(cfgs))
	for i, cfg := range cfgs {
		providers[i] = l.providerFor(cfg)
	}
	for i, cfg := range cfgs {
		cfg.SetProviderDefaults(providers[i])
	}
	for i, cfg := range cfgs {
		if err := cfg.Set(providers[i]); err != nil {
			return fmt.Errorf("set config values: %w", err)
		}
	}
	return nil
}
