package sqlprovider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds a provider bound to the given flags.
type Constructor func(flags Flags) Provider

var onceReg sync.Once
var defaultRegistry *Registry

// DefaultRegistry returns the process-wide registry holding the built-in
// dialects.
func DefaultRegistry() *Registry {
	onceReg.Do(func() {
		defaultRegistry = NewRegistry()
		registerBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// Registry maps dialect identifiers to constructors.
type Registry struct {
	mp sync.Map // map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a constructor. Registering an identifier twice is an error so
// that a misconfigured startup fails before any query runs.
func (r *Registry) Register(name string, ctor Constructor) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return errors.New("dialect name can not be empty")
	}
	if ctor == nil {
		return errors.New("dialect constructor can not be null")
	}
	if _, loaded := r.mp.LoadOrStore(n, ctor); loaded {
		return fmt.Errorf("dialect %q is already registered", n)
	}
	return nil
}

func (r *Registry) mustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Lookup returns the constructor for a dialect.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	v, ok := r.mp.Load(strings.TrimSpace(name))
	if !ok {
		return nil, false
	}
	return v.(Constructor), true
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.mp.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}
