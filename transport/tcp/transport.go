package tcp

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/transport"
)

// TCPTransportOptions configures the TCP transport
type TCPTransportOptions struct {
	// Address is the server address (host:port)
	Address string

	// Timeout for dialing and for round trips without a context deadline
	Timeout time.Duration

	// TLS configuration
	UseTLS     bool
	CertPath   string
	KeyPath    string
	SkipVerify bool

	// Pool configuration
	PoolSize        int
	PoolMinSize     int
	PoolIdleTimeout time.Duration

	// Health check interval
	HealthCheckInterval time.Duration
}

// TCPTransport implements transport.Transport over pooled TCP connections
// carrying length-prefixed frames.
type TCPTransport struct {
	opts    TCPTransportOptions
	pool    *connectionPool
	metrics transportMetrics
}

// transportMetrics tracks transport performance
type transportMetrics struct {
	totalRequests      atomic.Int64
	totalErrors        atomic.Int64
	bytesSent          atomic.Int64
	bytesReceived      atomic.Int64
	connectionsCreated atomic.Int64
	lastError          error
	lastErrorTime      time.Time
	latencySum         atomic.Int64 // nanoseconds
	mu                 sync.RWMutex
}

// NewTCPTransport creates a new TCP transport with connection pooling
func NewTCPTransport(opts TCPTransportOptions) (transport.Transport, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	if opts.PoolIdleTimeout == 0 {
		opts.PoolIdleTimeout = 5 * time.Minute
	}
	if opts.HealthCheckInterval == 0 {
		opts.HealthCheckInterval = 30 * time.Second
	}

	t := &TCPTransport{opts: opts}

	factory := func(ctx context.Context) (*tcpConnection, error) {
		return t.createConnection(ctx)
	}
	t.pool = newConnectionPool(factory, opts.PoolMinSize, opts.PoolSize, opts.PoolIdleTimeout, opts.HealthCheckInterval)

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	if err := t.pool.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize connection pool: %w", err)
	}

	return t, nil
}

// RoundTrip implements transport.Transport. The request and its response use
// the same pooled connection.
func (t *TCPTransport) RoundTrip(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()
	t.metrics.totalRequests.Add(1)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	conn, err := t.pool.Get(ctx)
	if err != nil {
		t.recordError(err)
		return nil, err
	}

	if err := conn.write(ctx, data); err != nil {
		// broken connections are not returned to the pool
		conn.markDead()
		t.pool.Put(conn)
		t.recordError(err)
		return nil, wrapNetError(err, t.opts.Address)
	}
	t.metrics.bytesSent.Add(int64(len(data)))

	resp, err := conn.read(ctx)
	if err != nil {
		conn.markDead()
		t.pool.Put(conn)
		t.recordError(err)
		return nil, wrapNetError(err, t.opts.Address)
	}
	t.metrics.bytesReceived.Add(int64(len(resp)))
	t.recordLatency(time.Since(start))

	t.pool.Put(conn)
	return resp, nil
}

// Close implements transport.Transport
func (t *TCPTransport) Close() error {
	return t.pool.Close()
}

// IsHealthy implements transport.Transport
func (t *TCPTransport) IsHealthy() bool {
	t.pool.mu.RLock()
	closed := t.pool.closed
	t.pool.mu.RUnlock()
	return !closed
}

// GetMetrics implements transport.Transport
func (t *TCPTransport) GetMetrics() transport.TransportMetrics {
	t.metrics.mu.RLock()
	lastErr := t.metrics.lastError
	lastErrTime := t.metrics.lastErrorTime
	t.metrics.mu.RUnlock()

	totalReqs := t.metrics.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(t.metrics.latencySum.Load() / totalReqs)
	}

	return transport.TransportMetrics{
		TotalRequests:      totalReqs,
		TotalErrors:        t.metrics.totalErrors.Load(),
		AverageLatency:     avgLatency,
		LastError:          lastErr,
		LastErrorTime:      lastErrTime,
		BytesSent:          t.metrics.bytesSent.Load(),
		BytesReceived:      t.metrics.bytesReceived.Load(),
		ConnectionsCreated: t.metrics.connectionsCreated.Load(),
		ConnectionsActive:  int(t.pool.stats.activeConnections.Load()),
	}
}

// createConnection creates a new TCP connection with optional TLS
func (t *TCPTransport) createConnection(ctx context.Context) (*tcpConnection, error) {
	t.metrics.connectionsCreated.Add(1)

	dialer := net.Dialer{Timeout: t.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.opts.Address)
	if err != nil {
		return nil, protocol.ConnectionError(fmt.Sprintf("failed to connect to %s", t.opts.Address), map[string]interface{}{
			"address": t.opts.Address,
			"timeout": t.opts.Timeout.String(),
		})
	}

	if t.opts.UseTLS {
		tlsConfig, err := t.buildTLSConfig()
		if err != nil {
			conn.Close()
			return nil, err
		}

		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			tlsConn.Close()
			return nil, protocol.ConnectionError("TLS handshake failed", map[string]interface{}{
				"error": err.Error(),
			})
		}

		conn = tlsConn
	}

	return &tcpConnection{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		lastActivity: time.Now(),
		alive:        true,
	}, nil
}

// buildTLSConfig creates a TLS configuration
func (t *TCPTransport) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: t.opts.SkipVerify,
	}

	serverName := t.opts.Address
	if idx := strings.LastIndex(t.opts.Address, ":"); idx >= 0 {
		serverName = t.opts.Address[:idx]
	}
	tlsConfig.ServerName = serverName

	if t.opts.CertPath != "" && t.opts.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(t.opts.CertPath, t.opts.KeyPath)
		if err != nil {
			return nil, protocol.ConnectionError("failed to load TLS certificate", map[string]interface{}{
				"certPath": t.opts.CertPath,
				"keyPath":  t.opts.KeyPath,
				"error":    err.Error(),
			})
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// recordError records an error in metrics
func (t *TCPTransport) recordError(err error) {
	t.metrics.totalErrors.Add(1)
	t.metrics.mu.Lock()
	t.metrics.lastError = err
	t.metrics.lastErrorTime = time.Now()
	t.metrics.mu.Unlock()
}

// recordLatency records latency in metrics
func (t *TCPTransport) recordLatency(latency time.Duration) {
	t.metrics.latencySum.Add(int64(latency))
}

func wrapNetError(err error, address string) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return protocol.TimeoutError("round trip timed out", map[string]interface{}{"address": address})
	}
	return protocol.ConnectionError(err.Error(), map[string]interface{}{"address": address})
}

// tcpConnection represents a single TCP connection
type tcpConnection struct {
	conn         net.Conn
	reader       *bufio.Reader
	lastActivity time.Time
	alive        bool
	mu           sync.RWMutex
}

// write sends one frame
func (c *tcpConnection) write(ctx context.Context, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	if err := WriteFrame(c.conn, data); err != nil {
		c.markDead()
		return err
	}

	c.updateActivity()
	return nil
}

// read reads one frame
func (c *tcpConnection) read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	data, err := ReadFrame(c.reader)
	if err != nil {
		c.markDead()
		return nil, err
	}

	c.updateActivity()
	return data, nil
}

// close closes the connection
func (c *tcpConnection) close() error {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// isAlive checks if the connection is alive
func (c *tcpConnection) isAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alive
}

// lastActivityTime returns the last activity time
func (c *tcpConnection) lastActivityTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// updateActivity updates the last activity timestamp
func (c *tcpConnection) updateActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// markDead marks the connection as dead
func (c *tcpConnection) markDead() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}
