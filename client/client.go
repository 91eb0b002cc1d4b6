// Package client executes query.Statement values on a remote executor.
//
// A Client resolves its configuration's metadata once per process through a
// ConfigurationCache, renders SQL locally with a dialect from the
// sqlprovider.FactoryCache, and sends encoded statements to service handles
// it acquires per call. Non-query statements can be collected in a batch and
// sent as one call.
package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dan-strohschein/remotedb/mapping"
	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/sqlprovider"
)

// Client is one data-access session bound to a configuration.
//
// The lazy accessors (ContextID, ProviderType, ProviderFlags, MappingCatalog,
// Provider) are safe for concurrent use. Batch and execution methods are not:
// callers serialize them on one Client.
type Client struct {
	opts          ClientOptions
	configuration string
	cache         *ConfigurationCache
	factories     *sqlprovider.FactoryCache
	codec         protocol.Codec
	logger        Logger
	debugMode     atomic.Bool

	hooks   []Hook
	hooksMu sync.RWMutex

	// lazily resolved, guarded by mu
	mu              sync.Mutex
	info            *ConfigurationInfo
	contextID       string
	providerType    string
	providerTypeSet bool
	catalog         *mapping.Catalog
	catalogSet      bool
	factory         *sqlprovider.Factory

	batch      [][]byte
	batchDepth int

	closeMu   sync.Mutex
	onClosing []func()
	closed    bool
}

// NewClient creates a client. If opts is nil, default options are used, which
// fails because a ServiceFactory is required.
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		defaultOpts := DefaultOptions()
		opts = &defaultOpts
	}
	if opts.ServiceFactory == nil {
		return nil, fmt.Errorf("client: ServiceFactory is required")
	}

	o := opts.withDefaults()
	c := &Client{
		opts:          o,
		configuration: o.Configuration,
		cache:         o.ConfigurationCache,
		factories:     o.FactoryCache,
		codec:         o.Codec,
		logger:        o.Logger.WithFields(String("configuration", o.Configuration)),
	}
	c.debugMode.Store(o.DebugMode)
	for _, h := range o.Hooks {
		c.RegisterHook(h)
	}
	return c, nil
}

// Configuration returns the configuration name the client is bound to.
func (c *Client) Configuration() string {
	return c.configuration
}

// acquire returns a new service handle with the client's hooks attached. It
// has the service.Factory signature.
func (c *Client) acquire(ctx context.Context) (service.Service, error) {
	svc, err := c.opts.ServiceFactory(ctx)
	if err != nil {
		c.logger.Warn("failed to acquire service handle", Error("error", err))
		return nil, err
	}
	return &hookedService{svc: svc, c: c}, nil
}

// configurationInfo returns the cached metadata. Callers hold c.mu.
func (c *Client) configurationInfo(ctx context.Context) (*ConfigurationInfo, error) {
	if c.info != nil {
		return c.info, nil
	}
	ci, err := c.cache.GetOrCreate(ctx, c.configuration, c.opts.ContextIDPrefix, c.acquire)
	if err != nil {
		c.logger.Error("configuration resolution failed", Error("error", err))
		return nil, err
	}
	c.logger.Info("configuration resolved",
		String("dialect", ci.Info.Dialect),
		Int("aliases", len(ci.Info.Configurations)))
	c.info = ci
	return ci, nil
}

// ConfigurationInfo returns the shared metadata of the client's configuration.
func (c *Client) ConfigurationInfo(ctx context.Context) (*ConfigurationInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configurationInfo(ctx)
}

// ContextID returns the first configuration of the mapping catalog.
func (c *Client) ContextID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contextIDLocked(ctx)
}

func (c *Client) contextIDLocked(ctx context.Context) (string, error) {
	if c.contextID != "" {
		return c.contextID, nil
	}
	catalog, err := c.mappingCatalogLocked(ctx)
	if err != nil {
		return "", err
	}
	list := catalog.ConfigurationList()
	if len(list) == 0 {
		return c.opts.ContextIDPrefix, nil
	}
	c.contextID = list[0]
	return c.contextID, nil
}

// MappingCatalog returns the catalog set with SetMappingCatalog, or the one
// built for the configuration.
func (c *Client) MappingCatalog(ctx context.Context) (*mapping.Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mappingCatalogLocked(ctx)
}

func (c *Client) mappingCatalogLocked(ctx context.Context) (*mapping.Catalog, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	ci, err := c.configurationInfo(ctx)
	if err != nil {
		return nil, err
	}
	c.catalog = ci.Catalog
	return c.catalog, nil
}

// SetMappingCatalog overrides the mapping catalog. The context ID is derived
// again from the new catalog.
func (c *Client) SetMappingCatalog(catalog *mapping.Catalog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = catalog
	c.catalogSet = catalog != nil
	c.contextID = ""
}

// ProviderType returns the dialect identifier set with SetProviderType, or the
// one the configuration reports.
func (c *Client) ProviderType(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providerTypeLocked(ctx)
}

func (c *Client) providerTypeLocked(ctx context.Context) (string, error) {
	if c.providerType != "" {
		return c.providerType, nil
	}
	ci, err := c.configurationInfo(ctx)
	if err != nil {
		return "", err
	}
	c.providerType = ci.Info.Dialect
	return c.providerType, nil
}

// SetProviderType overrides the dialect identifier.
func (c *Client) SetProviderType(dialect string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providerType = dialect
	c.providerTypeSet = dialect != ""
	c.factory = nil
}

// ProviderFlags returns the configuration's capability flags.
func (c *Client) ProviderFlags(ctx context.Context) (sqlprovider.Flags, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ci, err := c.configurationInfo(ctx)
	if err != nil {
		return sqlprovider.Flags{}, err
	}
	return ci.Info.Flags, nil
}

// ProviderFactory returns the dialect factory for the client's provider type.
func (c *Client) ProviderFactory(ctx context.Context) (*sqlprovider.Factory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providerFactoryLocked(ctx)
}

func (c *Client) providerFactoryLocked(ctx context.Context) (*sqlprovider.Factory, error) {
	if c.factory != nil {
		return c.factory, nil
	}
	dialect, err := c.providerTypeLocked(ctx)
	if err != nil {
		return nil, err
	}
	ci, err := c.configurationInfo(ctx)
	if err != nil {
		return nil, err
	}
	f, err := c.factories.GetOrCreate(dialect, ci.Info.Flags)
	if err != nil {
		return nil, err
	}
	c.factory = f
	return f, nil
}

// Provider returns a new dialect provider.
func (c *Client) Provider(ctx context.Context) (sqlprovider.Provider, error) {
	f, err := c.ProviderFactory(ctx)
	if err != nil {
		return nil, err
	}
	return f.New(), nil
}

// Clone returns a client bound to the same configuration, options and caches.
// The hooks currently registered and the overrides made with SetProviderType
// and SetMappingCatalog are carried over; batch state is not.
func (c *Client) Clone() *Client {
	opts := c.opts
	opts.Hooks = nil
	clone, _ := NewClient(&opts)
	clone.debugMode.Store(c.debugMode.Load())

	c.mu.Lock()
	if c.providerTypeSet {
		clone.providerType = c.providerType
		clone.providerTypeSet = true
	}
	if c.catalogSet {
		clone.catalog = c.catalog
		clone.catalogSet = true
	}
	c.mu.Unlock()

	for _, h := range c.snapshotHooks() {
		clone.RegisterHook(h)
	}
	return clone
}

// OnClosing registers fn to run when Close is called.
func (c *Client) OnClosing(fn func()) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	c.onClosing = append(c.onClosing, fn)
}

// Close runs the OnClosing callbacks. Statements still queued in an open
// batch are discarded. Calling Close again does nothing.
func (c *Client) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	callbacks := c.onClosing
	c.onClosing = nil
	c.closeMu.Unlock()

	if c.batchDepth > 0 {
		c.logger.Warn("closing client with an open batch",
			Int("batchDepth", c.batchDepth),
			Int("discarded", len(c.batch)))
		c.batch, c.batchDepth = nil, 0
	}

	for _, fn := range callbacks {
		fn()
	}
	return nil
}
