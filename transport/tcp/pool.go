package tcp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// poolStats tracks connection pool statistics
type poolStats struct {
	activeConnections atomic.Int32
	idleConnections   atomic.Int32
	totalConnections  atomic.Int32
	hits              atomic.Int64
	misses            atomic.Int64
	timeouts          atomic.Int64
	errors            atomic.Int64
}

// connectionPool hands out framed connections, at most one caller per
// connection at a time. slots holds one token per open connection.
type connectionPool struct {
	idle        chan *tcpConnection
	slots       chan struct{}
	dial        func(ctx context.Context) (*tcpConnection, error)
	minIdle     int
	idleTimeout time.Duration
	reapEvery   time.Duration
	stats       poolStats
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

func newConnectionPool(
	dial func(ctx context.Context) (*tcpConnection, error),
	minIdle, maxOpen int,
	idleTimeout, reapEvery time.Duration,
) *connectionPool {
	if maxOpen < 1 {
		maxOpen = 1
	}
	if minIdle < 0 {
		minIdle = 0
	}
	if minIdle > maxOpen {
		minIdle = maxOpen
	}
	return &connectionPool{
		idle:        make(chan *tcpConnection, maxOpen),
		slots:       make(chan struct{}, maxOpen),
		dial:        dial,
		minIdle:     minIdle,
		idleTimeout: idleTimeout,
		reapEvery:   reapEvery,
		stopCh:      make(chan struct{}),
	}
}

// Initialize opens minIdle connections and starts the reaper.
func (p *connectionPool) Initialize(ctx context.Context) error {
	for i := 0; i < p.minIdle; i++ {
		p.slots <- struct{}{}
		conn, err := p.dial(ctx)
		if err != nil {
			<-p.slots
			p.drain()
			return fmt.Errorf("failed to create initial connection: %w", err)
		}
		p.stats.totalConnections.Add(1)
		p.stats.idleConnections.Add(1)
		p.idle <- conn
	}

	p.wg.Add(1)
	go p.reaper()
	return nil
}

// Get returns an idle connection, dials a new one while under the limit, or
// waits for one to be returned.
func (p *connectionPool) Get(ctx context.Context) (*tcpConnection, error) {
	for {
		p.mu.RLock()
		closed := p.closed
		p.mu.RUnlock()
		if closed {
			return nil, fmt.Errorf("pool is closed")
		}

		select {
		case conn := <-p.idle:
			if c := p.checkout(conn); c != nil {
				p.stats.hits.Add(1)
				return c, nil
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			p.stats.timeouts.Add(1)
			return nil, ctx.Err()
		case conn := <-p.idle:
			if c := p.checkout(conn); c != nil {
				p.stats.hits.Add(1)
				return c, nil
			}
		case p.slots <- struct{}{}:
			p.stats.misses.Add(1)
			conn, err := p.dial(ctx)
			if err != nil {
				<-p.slots
				p.stats.errors.Add(1)
				return nil, fmt.Errorf("failed to create new connection: %w", err)
			}
			p.stats.totalConnections.Add(1)
			p.stats.activeConnections.Add(1)
			return conn, nil
		}
	}
}

// checkout moves an idle connection to active, discarding it when dead.
func (p *connectionPool) checkout(conn *tcpConnection) *tcpConnection {
	p.stats.idleConnections.Add(-1)
	if !conn.isAlive() {
		p.discard(conn)
		return nil
	}
	p.stats.activeConnections.Add(1)
	return conn
}

// Put returns a connection to the pool
func (p *connectionPool) Put(conn *tcpConnection) {
	if conn == nil {
		return
	}
	p.stats.activeConnections.Add(-1)

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed || !conn.isAlive() {
		p.discard(conn)
		return
	}
	p.stats.idleConnections.Add(1)
	// idle has room for every slot, so this never blocks
	p.idle <- conn
}

func (p *connectionPool) discard(conn *tcpConnection) {
	conn.close()
	p.stats.totalConnections.Add(-1)
	<-p.slots
}

// Close closes the pool and all idle connections. Active connections are
// closed when they are returned.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	p.drain()
	return nil
}

func (p *connectionPool) drain() {
	for {
		select {
		case conn := <-p.idle:
			p.stats.idleConnections.Add(-1)
			p.discard(conn)
		default:
			return
		}
	}
}

func (p *connectionPool) reaper() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.reapEvery)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reap(time.Now())
		}
	}
}

// reap closes dead connections and connections idle longer than idleTimeout,
// keeping at least minIdle.
func (p *connectionPool) reap(now time.Time) {
	n := len(p.idle)
	kept := make([]*tcpConnection, 0, n)
	for i := 0; i < n; i++ {
		var conn *tcpConnection
		select {
		case conn = <-p.idle:
		default:
		}
		if conn == nil {
			break
		}
		expired := now.Sub(conn.lastActivityTime()) > p.idleTimeout
		if !conn.isAlive() || (expired && len(kept) >= p.minIdle) {
			p.stats.idleConnections.Add(-1)
			p.discard(conn)
			continue
		}
		kept = append(kept, conn)
	}
	for _, conn := range kept {
		p.idle <- conn
	}
}
