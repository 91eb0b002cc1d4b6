package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-strohschein/remotedb/mapping"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/sqlprovider"
	"github.com/dan-strohschein/remotedb/testutil"
)

// newTestClient returns a client over exec with caches of its own.
func newTestClient(t *testing.T, exec *testutil.MockService, configuration string) *Client {
	t.Helper()
	c, err := NewClient(&ClientOptions{
		Configuration:      configuration,
		ServiceFactory:     exec.Factory(),
		ConfigurationCache: NewConfigurationCache(),
		FactoryCache:       sqlprovider.NewFactoryCache(sqlprovider.DefaultRegistry()),
		Logger:             NewNoopLogger(),
	})
	require.NoError(t, err)
	return c
}

func postgresInfo(aliases ...string) *service.Info {
	return testutil.Info(sqlprovider.PostgreSQL, aliases...)
}

func TestNewClientRequiresServiceFactory(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&ClientOptions{Configuration: "Main"})
	assert.Error(t, err)
}

func TestLazyAccessors(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturn(postgresInfo("Main", "Primary"))

	c := newTestClient(t, exec, "Main")
	ctx := context.Background()

	id, err := c.ContextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LinqService.Main", id)

	dialect, err := c.ProviderType(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.PostgreSQL, dialect)

	flags, err := c.ProviderFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.DefaultFlags(), flags)

	catalog, err := c.MappingCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"LinqService.Main", "LinqService.Primary", "LinqService", "Main", "Primary"},
		catalog.ConfigurationList())

	p, err := c.Provider(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.PostgreSQL, p.Name())

	// one GetInfo, one handle, released
	exec.VerifyExpectations(t)
	assert.Equal(t, 1, exec.Acquired())
	assert.Equal(t, 0, exec.OpenHandles())
}

func TestLazyAccessorsConcurrent(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturn(postgresInfo("Main"))
	c := newTestClient(t, exec, "Main")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := c.ContextID(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "LinqService.Main", id)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, exec.GetCallCount(service.MethodGetInfo))
}

func TestContextIDPrefixOption(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("").WillReturn(postgresInfo("Default"))

	c, err := NewClient(&ClientOptions{
		ContextIDPrefix:    "Remote",
		ServiceFactory:     exec.Factory(),
		ConfigurationCache: NewConfigurationCache(),
		Logger:             NewNoopLogger(),
	})
	require.NoError(t, err)

	id, err := c.ContextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Remote.Default", id)
}

func TestLazyErrorsAreNotMemoized(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturnError(errors.New("unavailable"))
	c := newTestClient(t, exec, "Main")

	_, err := c.ProviderType(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigurationResolution)

	exec.ExpectGetInfo("Main").WillReturn(postgresInfo("Main"))
	dialect, err := c.ProviderType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.PostgreSQL, dialect)
	assert.Equal(t, 0, exec.OpenHandles())
}

func TestSetProviderType(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturn(postgresInfo("Main"))
	c := newTestClient(t, exec, "Main")
	ctx := context.Background()

	p, err := c.Provider(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.PostgreSQL, p.Name())

	c.SetProviderType(sqlprovider.SQLite)
	dialect, err := c.ProviderType(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.SQLite, dialect)

	p, err = c.Provider(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.SQLite, p.Name())
}

func TestUnknownDialectFails(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturn(&service.Info{Configurations: []string{"Main"}, Dialect: "Oracle"})
	c := newTestClient(t, exec, "Main")

	_, err := c.Provider(context.Background())
	assert.ErrorIs(t, err, sqlprovider.ErrDialectConstruction)
}

func TestSetMappingCatalog(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturn(postgresInfo("Main"))
	c := newTestClient(t, exec, "Main")
	ctx := context.Background()

	id, err := c.ContextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LinqService.Main", id)

	custom := mapping.NewCatalog(mapping.NewSchema("Custom"), mapping.Default())
	c.SetMappingCatalog(custom)

	id, err = c.ContextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Custom", id)

	got, err := c.MappingCatalog(ctx)
	require.NoError(t, err)
	assert.Same(t, custom, got)
}

func TestClone(t *testing.T) {
	exec := testutil.NewMockService()
	exec.ExpectGetInfo("Main").WillReturn(postgresInfo("Main"))
	c := newTestClient(t, exec, "Main")
	c.SetProviderType(sqlprovider.MySQL)
	c.RegisterHook(NewMetricsHook())
	c.BeginBatch()

	clone := c.Clone()
	assert.Equal(t, "Main", clone.Configuration())
	assert.Equal(t, 0, clone.BatchDepth())
	assert.Equal(t, []string{"metrics"}, clone.GetHooks())

	dialect, err := clone.ProviderType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sqlprovider.MySQL, dialect)

	// caches are shared, so the clone resolves without a second GetInfo
	_, err = c.ConfigurationInfo(context.Background())
	require.NoError(t, err)
	_, err = clone.ConfigurationInfo(context.Background())
	require.NoError(t, err)
	exec.VerifyExpectations(t)
}

func TestCloneDropsUnregisteredHooks(t *testing.T) {
	c, err := NewClient(&ClientOptions{
		Configuration:      "Main",
		ServiceFactory:     testutil.NewMockService().Factory(),
		ConfigurationCache: NewConfigurationCache(),
		Logger:             NewNoopLogger(),
		Hooks:              []Hook{&recordingHook{name: "audit"}, NewMetricsHook()},
	})
	require.NoError(t, err)

	require.True(t, c.UnregisterHook("audit"))
	clone := c.Clone()

	assert.Equal(t, []string{"metrics"}, c.GetHooks())
	assert.Equal(t, []string{"metrics"}, clone.GetHooks())
}

func TestCloseRunsOnClosing(t *testing.T) {
	c := newTestClient(t, testutil.NewMockService(), "Main")

	var calls []int
	c.OnClosing(func() { calls = append(calls, 1) })
	c.OnClosing(func() { calls = append(calls, 2) })
	c.BeginBatch()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, []int{1, 2}, calls)
	assert.Equal(t, 0, c.BatchDepth())
}
