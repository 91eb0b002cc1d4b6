// Package service defines the contract of a remote query executor and the
// handle the client acquires to talk to one.
package service

import (
	"context"

	"github.com/dan-strohschein/remotedb/sqlprovider"
)

// Method names used on the wire and in hooks.
const (
	MethodGetInfo         = "GetInfo"
	MethodExecuteNonQuery = "ExecuteNonQuery"
	MethodExecuteScalar   = "ExecuteScalar"
	MethodExecuteReader   = "ExecuteReader"
	MethodExecuteBatch    = "ExecuteBatch"
)

// Info is the metadata a remote executor reports for a configuration.
type Info struct {
	// Configurations lists the aliases the configuration is known by.
	Configurations []string `json:"configurations"`

	// Dialect identifies the sqlprovider dialect that renders statements
	// for the backend.
	Dialect string `json:"dialect"`

	Flags sqlprovider.Flags `json:"flags"`
}

// Service is a handle to a remote executor. A handle is acquired per call and
// must be closed exactly once.
//
// Query payloads are produced by a protocol.Codec; the service treats them as
// opaque bytes.
type Service interface {
	GetInfo(ctx context.Context, configuration string) (*Info, error)

	// ExecuteNonQuery runs a statement and returns the affected row count.
	ExecuteNonQuery(ctx context.Context, configuration string, data []byte) (int, error)

	// ExecuteScalar runs a statement and returns the encoded single value.
	ExecuteScalar(ctx context.Context, configuration string, data []byte) ([]byte, error)

	// ExecuteReader runs a statement and returns the encoded table.
	ExecuteReader(ctx context.Context, configuration string, data []byte) ([]byte, error)

	// ExecuteBatch runs an encoded list of non-query payloads.
	ExecuteBatch(ctx context.Context, configuration string, data []byte) error

	Close() error
}

// Factory acquires a new Service handle.
type Factory func(ctx context.Context) (Service, error)
