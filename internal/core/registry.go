package core

import (
	"sort"
	"sync"
)

var (
	registry   = make(map[string]SourceConfig)
	registryMu sync.RWMutex
)

// Register adds a source configuration to the registry.
// Panics if a source with the same code is already registered.
func Register(cfg SourceConfig) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[cfg.Code]; exists {
		panic("data source already registered: " + cfg.Code)
	}

	registry[cfg.Code] = cfg
}

// Resolve returns the configuration for a source code.
// Returns UnknownSourceError if no such source is registered.
func Resolve(code string) (SourceConfig, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	cfg, ok := registry[code]
	if !ok {
		return SourceConfig{}, &UnknownSourceError{Code: code}
	}
	return cfg, nil
}

// Lookup returns a source configuration by code.
// Returns false if not found.
func Lookup(code string) (SourceConfig, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	cfg, ok := registry[code]
	return cfg, ok
}

// AllSources returns all registered source configurations.
// Sorted by code for consistent ordering.
func AllSources() []SourceConfig {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]SourceConfig, 0, len(registry))
	for _, cfg := range registry {
		result = append(result, cfg)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})

	return result
}

// SourceCount returns the number of registered sources.
func SourceCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// ClearRegistry removes all registered sources.
// Primarily useful for testing.
func ClearRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]SourceConfig)
}
