package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn satisfies Conn without a database.
type fakeConn struct {
	closed atomic.Bool
}

func (f *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (f *fakeConn) Ping(ctx context.Context) error { return nil }
func (f *fakeConn) IsClosed() bool                 { return f.closed.Load() }

func (f *fakeConn) Close(ctx context.Context) error {
	f.closed.Store(true)
	return nil
}

// countingDialer returns a DialFunc that tracks how many connections it made.
func countingDialer(dials *atomic.Int32) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		dials.Add(1)
		return &fakeConn{}, nil
	}
}

func TestPool_LazyDialAndReuse(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(countingDialer(&dials), 4)
	defer p.Close(context.Background())

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), dials.Load(), "first acquire dials")

	p.Release(conn)

	conn2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), dials.Load(), "idle connection is reused, not redialed")
	assert.Same(t, conn, conn2)
	p.Release(conn2)
}

func TestPool_AcquireBlocksAtCapacity(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(countingDialer(&dials), 2)
	defer p.Close(context.Background())

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan Conn)
	go func() {
		c, err := p.Acquire(context.Background())
		if err != nil {
			t.Error(err)
			return
		}
		acquired <- c
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire must block while the pool is exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(c1)

	select {
	case c := <-acquired:
		p.Release(c)
	case <-time.After(time.Second):
		t.Fatal("acquire did not wake up after a release")
	}
	p.Release(c2)

	assert.Equal(t, int32(2), dials.Load(), "pool never exceeds capacity")
}

func TestPool_AcquireHonorsContext(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(countingDialer(&dials), 1)
	defer p.Close(context.Background())

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_ClosedConnIsDiscarded(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(countingDialer(&dials), 2)
	defer p.Close(context.Background())

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	// Simulate the server dropping the connection while checked out.
	conn.Close(context.Background())
	p.Release(conn)

	fresh, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(fresh)

	assert.NotSame(t, conn, fresh)
	assert.Equal(t, int32(2), dials.Load(), "dead connection forces a fresh dial")
	assert.False(t, fresh.IsClosed())
}

func TestPool_DialErrorFreesSlot(t *testing.T) {
	dialErr := errors.New("boom")
	calls := 0
	dial := func(ctx context.Context) (Conn, error) {
		calls++
		if calls == 1 {
			return nil, dialErr
		}
		return &fakeConn{}, nil
	}

	p := NewPool(dial, 1)
	defer p.Close(context.Background())

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, dialErr)

	// The failed dial must not leak the slot.
	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn)
}

func TestPool_Close(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(countingDialer(&dials), 2)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn)

	p.Close(context.Background())

	assert.True(t, conn.IsClosed(), "idle connections are closed with the pool")

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}
