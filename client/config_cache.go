package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/dan-strohschein/remotedb/mapping"
	"github.com/dan-strohschein/remotedb/service"
)

// ConfigurationInfo is the metadata resolved for one configuration name. It
// is immutable once built and shared by every client using the name.
type ConfigurationInfo struct {
	Name    string
	Info    *service.Info
	Catalog *mapping.Catalog
}

const configShards = 16

type configShard struct {
	mu      sync.RWMutex
	entries map[string]*ConfigurationInfo
}

// ConfigurationCache maps configuration names to their metadata. Entries live
// until Forget is called; the cache never evicts on its own, so a name keeps
// resolving to the same *ConfigurationInfo.
type ConfigurationCache struct {
	shards [configShards]*configShard
	group  singleflight.Group
	builds atomic.Int64
}

// NewConfigurationCache creates an empty cache.
func NewConfigurationCache() *ConfigurationCache {
	c := &ConfigurationCache{}
	for i := range c.shards {
		c.shards[i] = &configShard{entries: make(map[string]*ConfigurationInfo)}
	}
	return c
}

var onceConfigCache sync.Once
var defaultConfigCache *ConfigurationCache

// DefaultConfigurationCache returns the process-wide cache.
func DefaultConfigurationCache() *ConfigurationCache {
	onceConfigCache.Do(func() {
		defaultConfigCache = NewConfigurationCache()
	})
	return defaultConfigCache
}

func (c *ConfigurationCache) shard(name string) *configShard {
	return c.shards[xxhash.Sum64([]byte(name))%configShards]
}

func (s *configShard) load(name string) (*ConfigurationInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ci, ok := s.entries[name]
	return ci, ok
}

// storeIfAbsent inserts ci unless name is already present, and returns the
// stored value.
func (s *configShard) storeIfAbsent(name string, ci *ConfigurationInfo) *ConfigurationInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[name]; ok {
		return existing
	}
	s.entries[name] = ci
	return ci
}

// GetOrCreate returns the metadata for name, asking the remote service on
// first use. Concurrent first uses of one name share a single GetInfo call.
// prefix only matters to the call that builds the entry.
//
// The shared call does not inherit the cancellation of the caller that
// started it. A caller whose ctx ends while waiting gets ctx's error; the
// others still receive the result.
func (c *ConfigurationCache) GetOrCreate(ctx context.Context, name, prefix string, newService service.Factory) (*ConfigurationInfo, error) {
	sh := c.shard(name)
	if ci, ok := sh.load(name); ok {
		return ci, nil
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (interface{}, error) {
		if ci, ok := sh.load(name); ok {
			return ci, nil
		}
		ci, err := c.build(buildCtx, name, prefix, newService)
		if err != nil {
			return nil, err
		}
		return sh.storeIfAbsent(name, ci), nil
	})

	select {
	case <-ctx.Done():
		return nil, errConfigurationResolution(name, "gave up waiting for configuration", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ConfigurationInfo), nil
	}
}

func (c *ConfigurationCache) build(ctx context.Context, name, prefix string, newService service.Factory) (ci *ConfigurationInfo, err error) {
	svc, err := newService(ctx)
	if err != nil {
		return nil, errConfigurationResolution(name, "failed to acquire service handle", err)
	}
	defer func() {
		cerr := svc.Close()
		if ce, ok := err.(*ConfigurationError); ok && cerr != nil {
			ce.Cause = multierr.Append(ce.Cause, cerr)
		}
	}()

	c.builds.Add(1)
	info, err := svc.GetInfo(ctx, name)
	if err != nil {
		return nil, errConfigurationResolution(name, "GetInfo failed", err)
	}
	if info == nil || info.Dialect == "" {
		return nil, errConfigurationResolution(name, "remote service returned unusable metadata", nil)
	}

	return &ConfigurationInfo{
		Name:    name,
		Info:    info,
		Catalog: mapping.ForConfiguration(prefix, info.Configurations),
	}, nil
}

// Len returns the number of cached configurations.
func (c *ConfigurationCache) Len() int {
	n := 0
	for _, sh := range c.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Forget drops the entry for name. Clients that already resolved it keep
// their copy.
func (c *ConfigurationCache) Forget(name string) {
	sh := c.shard(name)
	sh.mu.Lock()
	delete(sh.entries, name)
	sh.mu.Unlock()
}

// Builds returns how many GetInfo calls the cache has made.
func (c *ConfigurationCache) Builds() int64 {
	return c.builds.Load()
}
