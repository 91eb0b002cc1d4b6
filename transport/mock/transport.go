// Package mock provides an in-memory transport.Transport for tests.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/transport"
)

// Responder computes the response frame for a request frame.
type Responder func(ctx context.Context, req []byte) ([]byte, error)

// MockTransport implements transport.Transport for testing
type MockTransport struct {
	// Behavior configuration
	err       error
	response  []byte
	responder Responder
	healthy   bool
	delay     time.Duration

	// Call tracking
	roundTrips atomic.Int32
	closeCalls atomic.Int32

	metrics mockMetrics
	mu      sync.RWMutex
	closed  bool
	history [][]byte
}

type mockMetrics struct {
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	latencySum    atomic.Int64
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{healthy: true}
}

// WithError makes every round trip fail with err
func (m *MockTransport) WithError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithResponse makes every round trip return data
func (m *MockTransport) WithResponse(data []byte) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = data
	return m
}

// WithResponder computes responses from requests. It takes precedence over
// WithResponse.
func (m *MockTransport) WithResponder(fn Responder) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
	return m
}

// WithHealthy configures the health status
func (m *MockTransport) WithHealthy(healthy bool) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	return m
}

// WithDelay adds a delay before each response
func (m *MockTransport) WithDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
	return m
}

// RoundTrip implements transport.Transport
func (m *MockTransport) RoundTrip(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()
	m.roundTrips.Add(1)
	m.metrics.totalRequests.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("transport is closed")
	}
	delay, err, response, responder := m.delay, m.err, m.response, m.responder
	m.history = append(m.history, data)
	m.mu.Unlock()
	m.metrics.bytesSent.Add(int64(len(data)))

	if delay > 0 {
		select {
		case <-ctx.Done():
			m.metrics.totalErrors.Add(1)
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err == nil && responder != nil {
		response, err = responder(ctx, data)
	}
	if err == nil && response == nil {
		err = protocol.TimeoutError("no data available", nil)
	}
	if err != nil {
		m.metrics.totalErrors.Add(1)
		return nil, err
	}

	m.metrics.bytesReceived.Add(int64(len(response)))
	m.metrics.latencySum.Add(int64(time.Since(start)))
	return response, nil
}

// Close implements transport.Transport
func (m *MockTransport) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsHealthy implements transport.Transport
func (m *MockTransport) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && !m.closed
}

// GetMetrics implements transport.Transport
func (m *MockTransport) GetMetrics() transport.TransportMetrics {
	totalReqs := m.metrics.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(m.metrics.latencySum.Load() / totalReqs)
	}

	return transport.TransportMetrics{
		TotalRequests:  totalReqs,
		TotalErrors:    m.metrics.totalErrors.Load(),
		AverageLatency: avgLatency,
		BytesSent:      m.metrics.bytesSent.Load(),
		BytesReceived:  m.metrics.bytesReceived.Load(),
	}
}

// GetRoundTripCount returns the number of times RoundTrip was called
func (m *MockTransport) GetRoundTripCount() int {
	return int(m.roundTrips.Load())
}

// GetCloseCallCount returns the number of times Close was called
func (m *MockTransport) GetCloseCallCount() int {
	return int(m.closeCalls.Load())
}

// GetHistory returns every request frame seen, in order
func (m *MockTransport) GetHistory() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([][]byte, len(m.history))
	copy(history, m.history)
	return history
}

// Reset clears all state and call counts
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = nil
	m.response = nil
	m.responder = nil
	m.healthy = true
	m.delay = 0
	m.closed = false
	m.history = nil

	m.roundTrips.Store(0)
	m.closeCalls.Store(0)
	m.metrics.totalRequests.Store(0)
	m.metrics.totalErrors.Store(0)
	m.metrics.bytesSent.Store(0)
	m.metrics.bytesReceived.Store(0)
	m.metrics.latencySum.Store(0)
}

// IsClosed returns whether the transport has been closed
func (m *MockTransport) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
