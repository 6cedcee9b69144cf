package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrPoolClosed = errors.New("connection pool is closed")

// Conn is the subset of *pgx.Conn the store uses. Pool hands these out and
// takes them back; tests substitute fakes.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	IsClosed() bool
	Close(ctx context.Context) error
}

// DialFunc opens a new database connection.
type DialFunc func(ctx context.Context) (Conn, error)

// PgxDialer returns a DialFunc that connects to the given database URL.
func PgxDialer(databaseURL string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return conn, nil
	}
}

// Pool is a bounded connection pool. Connections are created lazily up to the
// configured capacity; Acquire blocks while all of them are checked out.
// Connections returned in a closed state are discarded, freeing their slot
// for a fresh dial.
type Pool struct {
	dial DialFunc

	// slots holds one token per unused capacity unit. Acquire takes a token,
	// Release puts it back.
	slots chan struct{}

	mu     sync.Mutex
	idle   []Conn
	closed bool
}

// NewPool creates a pool that opens at most capacity connections via dial.
func NewPool(dial DialFunc, capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	slots := make(chan struct{}, capacity)
	for i := 0; i < capacity; i++ {
		slots <- struct{}{}
	}
	return &Pool{dial: dial, slots: slots}
}

// Acquire returns a connection, dialing a new one only when no idle
// connection is available. It blocks until a slot frees up or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case _, ok := <-p.slots:
		if !ok {
			return nil, ErrPoolClosed
		}
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	if conn := p.popIdle(); conn != nil {
		return conn, nil
	}

	conn, err := p.dial(ctx)
	if err != nil {
		// Slot stays usable for the next caller.
		p.returnSlot()
		return nil, err
	}
	return conn, nil
}

// Release returns a connection to the pool. Closed connections are dropped
// instead of being parked, so the slot can back a fresh dial later.
func (p *Pool) Release(conn Conn) {
	p.mu.Lock()
	if !p.closed && conn != nil && !conn.IsClosed() {
		p.idle = append(p.idle, conn)
		conn = nil
	}
	p.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		conn.Close(context.Background())
	}
	p.returnSlot()
}

// WithConn runs fn with a pooled connection, releasing it afterwards.
func (p *Pool) WithConn(ctx context.Context, fn func(Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// Ping verifies connectivity using one pooled connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.WithConn(ctx, func(c Conn) error {
		return c.Ping(ctx)
	})
}

// Close closes all idle connections and marks the pool closed. Connections
// still checked out are closed when released.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.slots)
	for _, c := range idle {
		if !c.IsClosed() {
			c.Close(ctx)
		}
	}
}

func (p *Pool) popIdle() Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.idle) > 0 {
		conn := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !conn.IsClosed() {
			return conn
		}
	}
	return nil
}

func (p *Pool) returnSlot() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.slots <- struct{}{}
}
