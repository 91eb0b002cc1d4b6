// Package mapping holds the scoped metadata catalog a client resolves per
// configuration.
//
// A Catalog is an ordered list of Schema scopes. Lookups walk the scopes in
// order, so the first scope has the highest priority and the process-wide
// Default schema, always appended last, has the lowest.
package mapping

import (
	"sort"
	"sync"
)

// Schema is one lookup scope, named after the configuration it belongs to.
// The default schema has an empty name.
type Schema struct {
	name string

	mu     sync.RWMutex
	values map[string]any
}

// NewSchema creates an empty scope for configuration.
func NewSchema(configuration string) *Schema {
	return &Schema{name: configuration, values: make(map[string]any)}
}

// Configuration returns the scope name.
func (s *Schema) Configuration() string { return s.name }

// Set stores a value in this scope.
func (s *Schema) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// Get returns the value stored in this scope only.
func (s *Schema) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys defined in this scope, sorted.
func (s *Schema) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

var onceDefault sync.Once
var defaultSchema *Schema

// Default returns the process-wide fallback scope.
func Default() *Schema {
	onceDefault.Do(func() {
		defaultSchema = NewSchema("")
	})
	return defaultSchema
}
