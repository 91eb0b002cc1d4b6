package sqlprovider

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Factory builds providers for one dialect with the flags it was created with.
type Factory struct {
	dialect string
	flags   Flags
	ctor    Constructor
}

// New returns a fresh provider.
func (f *Factory) New() Provider {
	return f.ctor(f.flags)
}

// Dialect returns the dialect identifier.
func (f *Factory) Dialect() string { return f.dialect }

// Flags returns the flags bound into the factory.
func (f *Factory) Flags() Flags { return f.flags }

var onceCache sync.Once
var defaultCache *FactoryCache

// DefaultFactoryCache returns the process-wide factory cache over
// DefaultRegistry.
func DefaultFactoryCache() *FactoryCache {
	onceCache.Do(func() {
		defaultCache = NewFactoryCache(DefaultRegistry())
	})
	return defaultCache
}

// FactoryCache resolves dialect identifiers to factories, building each at
// most once.
//
// Factories are cached by dialect identifier only. The flags passed on the
// first resolution of an identifier are bound into its factory, and later
// resolutions with different flags get that same factory back. Two
// configurations sharing a dialect therefore share the first one's flags.
type FactoryCache struct {
	registry  *Registry
	factories sync.Map // map[string]*Factory
	locks     sync.Map // map[string]*sync.Mutex
	built     atomic.Int64
}

// NewFactoryCache creates a cache over registry.
func NewFactoryCache(registry *Registry) *FactoryCache {
	return &FactoryCache{registry: registry}
}

// GetOrCreate returns the factory for dialect, building it on first use.
// Construction for one identifier is serialized; distinct identifiers build
// concurrently. Surrounding whitespace in dialect is ignored, as in Registry.
func (c *FactoryCache) GetOrCreate(dialect string, flags Flags) (*Factory, error) {
	dialect = strings.TrimSpace(dialect)
	if f, ok := c.factories.Load(dialect); ok {
		return f.(*Factory), nil
	}

	mu, _ := c.locks.LoadOrStore(dialect, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	if f, ok := c.factories.Load(dialect); ok {
		return f.(*Factory), nil
	}

	ctor, ok := c.registry.Lookup(dialect)
	if !ok {
		return nil, errNoConstructor(dialect)
	}

	f := &Factory{dialect: dialect, flags: flags, ctor: ctor}
	c.factories.Store(dialect, f)
	c.built.Add(1)
	return f, nil
}

// Built returns how many factories the cache has constructed.
func (c *FactoryCache) Built() int64 {
	return c.built.Load()
}
