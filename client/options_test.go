package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dan-strohschein/remotedb/sqlprovider"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "", opts.Configuration)
	assert.Equal(t, DefaultContextIDPrefix, opts.ContextIDPrefix)
	assert.Equal(t, "INFO", opts.LogLevel)
	assert.False(t, opts.DebugMode)
	assert.Nil(t, opts.ServiceFactory)
}

func TestOptionsWithDefaults(t *testing.T) {
	o := ClientOptions{}.withDefaults()
	assert.Equal(t, "LinqService", o.ContextIDPrefix)
	assert.Equal(t, "INFO", o.LogLevel)
	assert.NotNil(t, o.Codec)
	assert.Same(t, DefaultConfigurationCache(), o.ConfigurationCache)
	assert.Same(t, sqlprovider.DefaultFactoryCache(), o.FactoryCache)
	assert.NotNil(t, o.Logger)
}

func TestOptionsKeepExplicitValues(t *testing.T) {
	cache := NewConfigurationCache()
	logger := NewNoopLogger()
	o := ClientOptions{
		ContextIDPrefix:    "Remote",
		LogLevel:           "DEBUG",
		ConfigurationCache: cache,
		Logger:             logger,
	}.withDefaults()

	assert.Equal(t, "Remote", o.ContextIDPrefix)
	assert.Equal(t, "DEBUG", o.LogLevel)
	assert.Same(t, cache, o.ConfigurationCache)
	assert.Equal(t, logger, o.Logger)
}
