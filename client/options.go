package client

import (
	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/service"
	"github.com/dan-strohschein/remotedb/sqlprovider"
)

// DefaultContextIDPrefix is the scope prefix used when none is configured.
const DefaultContextIDPrefix = "LinqService"

// ClientOptions configures a Client.
type ClientOptions struct {
	// Configuration selects the remote configuration. The empty string is the
	// default configuration.
	Configuration string

	// ContextIDPrefix qualifies the configuration aliases in the mapping
	// catalog. Default: "LinqService"
	ContextIDPrefix string

	// ServiceFactory acquires remote service handles. Required.
	ServiceFactory service.Factory

	// Codec serializes queries and results. Default: protocol.NewCodec()
	Codec protocol.Codec

	// ConfigurationCache holds resolved configuration metadata.
	// Default: DefaultConfigurationCache()
	ConfigurationCache *ConfigurationCache

	// FactoryCache resolves dialect factories.
	// Default: sqlprovider.DefaultFactoryCache()
	FactoryCache *sqlprovider.FactoryCache

	// Logger is the logger implementation to use.
	// If nil, a logger at LogLevel writing to stdout is used.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "INFO"
	LogLevel string

	// DebugMode makes FormatError output include details and stack traces.
	// Default: false
	DebugMode bool

	// Hooks run around every remote call, in order.
	Hooks []Hook
}

// DefaultOptions returns ClientOptions with default values.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		ContextIDPrefix: DefaultContextIDPrefix,
		LogLevel:        "INFO",
		DebugMode:       false,
	}
}

// withDefaults fills unset fields.
func (o ClientOptions) withDefaults() ClientOptions {
	if o.ContextIDPrefix == "" {
		o.ContextIDPrefix = DefaultContextIDPrefix
	}
	if o.LogLevel == "" {
		o.LogLevel = "INFO"
	}
	if o.Codec == nil {
		o.Codec = protocol.NewCodec()
	}
	if o.ConfigurationCache == nil {
		o.ConfigurationCache = DefaultConfigurationCache()
	}
	if o.FactoryCache == nil {
		o.FactoryCache = sqlprovider.DefaultFactoryCache()
	}
	if o.Logger == nil {
		o.Logger = NewLogger(o.LogLevel, nil)
	}
	return o
}
