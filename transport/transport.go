// Package transport defines the byte-level transport used by the framed
// service client.
package transport

import (
	"context"
	"time"
)

// Transport carries one request frame to the remote executor and returns the
// matching response frame.
type Transport interface {
	// RoundTrip sends data and waits for the response on the same
	// connection.
	RoundTrip(ctx context.Context, data []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// IsHealthy returns whether the transport is healthy
	IsHealthy() bool

	// GetMetrics returns transport performance metrics
	GetMetrics() TransportMetrics
}

// TransportMetrics contains performance and health metrics
type TransportMetrics struct {
	// TotalRequests is the total number of round trips started
	TotalRequests int64

	// TotalErrors is the total number of errors encountered
	TotalErrors int64

	// AverageLatency is the average round-trip latency
	AverageLatency time.Duration

	// LastError is the most recent error encountered
	LastError error

	// LastErrorTime is when the last error occurred
	LastErrorTime time.Time

	// BytesSent is the total bytes sent
	BytesSent int64

	// BytesReceived is the total bytes received
	BytesReceived int64

	// ConnectionsCreated is the total number of connections created
	ConnectionsCreated int64

	// ConnectionsActive is the current number of active connections
	ConnectionsActive int
}

// Factory creates new transport instances
type Factory func(ctx context.Context) (Transport, error)
