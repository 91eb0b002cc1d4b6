package sqlprovider

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("Custom", NewPostgreSQLProvider))
	assert.Error(t, r.Register("Custom", NewMySQLProvider))
	assert.Error(t, r.Register("  ", NewMySQLProvider))
	assert.Error(t, r.Register("Other", nil))

	ctor, ok := r.Lookup("Custom")
	require.True(t, ok)
	assert.Equal(t, PostgreSQL, ctor(DefaultFlags()).Name())

	_, ok = r.Lookup("Missing")
	assert.False(t, ok)
}

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	assert.Equal(t, []string{MySQL, PostgreSQL, SQLite, Sybase}, DefaultRegistry().Names())
}

func TestFactoryCacheReturnsSameFactory(t *testing.T) {
	cache := NewFactoryCache(DefaultRegistry())

	first, err := cache.GetOrCreate(PostgreSQL, DefaultFlags())
	require.NoError(t, err)

	second, err := cache.GetOrCreate(PostgreSQL, DefaultFlags())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, cache.Built())
	assert.Equal(t, PostgreSQL, first.New().Name())
}

func TestFactoryCacheSharesFirstFlagsPerDialect(t *testing.T) {
	cache := NewFactoryCache(DefaultRegistry())

	first, err := cache.GetOrCreate(Sybase, SybaseFlags())
	require.NoError(t, err)

	// A second configuration on the same dialect with different flags still
	// gets the factory bound to the first flags.
	second, err := cache.GetOrCreate(Sybase, DefaultFlags())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, SybaseFlags(), second.Flags())
	assert.False(t, second.New().Flags().IsSkipSupported)
}

func TestFactoryCacheUnknownDialect(t *testing.T) {
	cache := NewFactoryCache(NewRegistry())

	f, err := cache.GetOrCreate("Oracle", DefaultFlags())
	assert.Nil(t, f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDialectConstruction))

	var cerr *ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Oracle", cerr.Dialect)

	// nothing was cached, so registering afterwards makes it resolvable
	require.NoError(t, cache.registry.Register("Oracle", NewPostgreSQLProvider))
	f, err = cache.GetOrCreate("Oracle", DefaultFlags())
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func TestFactoryCacheConcurrentFirstUse(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	calls := map[string]int{}
	counting := func(name string) Constructor {
		return func(flags Flags) Provider {
			mu.Lock()
			calls[name]++
			mu.Unlock()
			return NewPostgreSQLProvider(flags)
		}
	}
	require.NoError(t, r.Register("a", counting("a")))
	require.NoError(t, r.Register("b", counting("b")))

	cache := NewFactoryCache(r)

	const workers = 32
	results := make([]*Factory, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "a"
			if i%2 == 1 {
				name = "b"
			}
			f, err := cache.GetOrCreate(name, DefaultFlags())
			assert.NoError(t, err)
			results[i] = f
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 2, cache.Built())
	for i := 2; i < workers; i++ {
		assert.Same(t, results[i%2], results[i])
	}

	// constructors run only when a provider is requested
	assert.Empty(t, calls)
	results[0].New()
	assert.Equal(t, 1, calls["a"])
}

func TestDefaultFactoryCacheIsSingleton(t *testing.T) {
	assert.Same(t, DefaultFactoryCache(), DefaultFactoryCache())
}

func TestFactoryCacheTrimsDialect(t *testing.T) {
	cache := NewFactoryCache(DefaultRegistry())

	first, err := cache.GetOrCreate(PostgreSQL, DefaultFlags())
	require.NoError(t, err)
	second, err := cache.GetOrCreate(" "+PostgreSQL+"\n", SybaseFlags())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, PostgreSQL, second.Dialect())
	assert.EqualValues(t, 1, cache.Built())
}
