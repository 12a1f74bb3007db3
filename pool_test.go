package openwire

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pior/openwire/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var poolFactories = map[string]PoolFactory{
	"channel": NewChannelPool,
	"puddle":  NewPuddlePool,
}

// stubConstructor creates connections over stub transports and counts them.
func stubConstructor(created *atomic.Int32) Constructor {
	return func(ctx context.Context) (*Conn, error) {
		created.Add(1)
		return NewConn(newStubTransport(), "stub"), nil
	}
}

func TestPoolReusesReleasedConn(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			var created atomic.Int32
			pool, err := factory(stubConstructor(&created), 2)
			require.NoError(t, err)
			defer pool.Close()

			res, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			first := res.Value()
			assert.False(t, res.CreationTime().IsZero())
			res.Release()

			res, err = pool.Acquire(context.Background())
			require.NoError(t, err)
			assert.Same(t, first, res.Value())
			res.Release()

			assert.EqualValues(t, 1, created.Load())
			stats := pool.Stats()
			assert.EqualValues(t, 2, stats.AcquireCount)
			assert.EqualValues(t, 1, stats.CreatedConns)
			assert.EqualValues(t, 1, stats.TotalConns)
			assert.EqualValues(t, 1, stats.IdleConns)
		})
	}
}

func TestPoolAcquireWaitsWhenFull(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			var created atomic.Int32
			pool, err := factory(stubConstructor(&created), 1)
			require.NoError(t, err)
			defer pool.Close()

			held, err := pool.Acquire(context.Background())
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = pool.Acquire(ctx)
			assert.ErrorIs(t, err, context.DeadlineExceeded)

			got := make(chan Resource, 1)
			go func() {
				res, err := pool.Acquire(context.Background())
				if err == nil {
					got <- res
				}
			}()

			time.Sleep(10 * time.Millisecond)
			held.Release()

			select {
			case res := <-got:
				assert.Same(t, held.Value(), res.Value())
				res.Release()
			case <-time.After(2 * time.Second):
				t.Fatal("waiter not woken by release")
			}
			assert.EqualValues(t, 1, created.Load())
		})
	}
}

func TestPoolDestroyFreesSlot(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			var created atomic.Int32
			pool, err := factory(stubConstructor(&created), 1)
			require.NoError(t, err)
			defer pool.Close()

			held, err := pool.Acquire(context.Background())
			require.NoError(t, err)

			got := make(chan Resource, 1)
			go func() {
				res, err := pool.Acquire(context.Background())
				if err == nil {
					got <- res
				}
			}()

			time.Sleep(10 * time.Millisecond)
			held.Destroy()

			select {
			case res := <-got:
				assert.NotSame(t, held.Value(), res.Value())
				res.Release()
			case <-time.After(2 * time.Second):
				t.Fatal("waiter not woken by destroy")
			}
			assert.EqualValues(t, 2, created.Load())
			assert.Eventually(t, func() bool { return pool.Stats().DestroyedConns == 1 }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestPoolReleaseDestroysFailedConn(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			var created atomic.Int32
			pool, err := factory(stubConstructor(&created), 1)
			require.NoError(t, err)
			defer pool.Close()

			res, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			failed := res.Value()
			failed.Transport.(*stubTransport).deliver(&commands.ShutdownInfo{})
			require.ErrorIs(t, failed.Err(), ErrBrokerShutdown)
			res.Release()

			assert.Eventually(t, func() bool { return pool.Stats().DestroyedConns == 1 }, time.Second, 5*time.Millisecond)

			res, err = pool.Acquire(context.Background())
			require.NoError(t, err)
			assert.NotSame(t, failed, res.Value())
			res.Release()
			assert.EqualValues(t, 2, created.Load())
		})
	}
}

func TestPoolConstructorError(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("dial failed")
			var fail atomic.Bool
			fail.Store(true)
			pool, err := factory(func(ctx context.Context) (*Conn, error) {
				if fail.Load() {
					return nil, boom
				}
				return NewConn(newStubTransport(), "stub"), nil
			}, 1)
			require.NoError(t, err)
			defer pool.Close()

			_, err = pool.Acquire(context.Background())
			assert.ErrorIs(t, err, boom)

			fail.Store(false)
			res, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			res.Release()
		})
	}
}

func TestPoolAcquireAllIdle(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			var created atomic.Int32
			pool, err := factory(stubConstructor(&created), 3)
			require.NoError(t, err)
			defer pool.Close()

			a, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			b, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			c, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			a.Release()
			b.Release()

			idle := pool.AcquireAllIdle()
			assert.Len(t, idle, 2)
			for _, res := range idle {
				res.ReleaseUnused()
			}
			c.Release()

			idle = pool.AcquireAllIdle()
			assert.Len(t, idle, 3)
			for _, res := range idle {
				res.Release()
			}
		})
	}
}

func TestPoolClosed(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			var created atomic.Int32
			pool, err := factory(stubConstructor(&created), 2)
			require.NoError(t, err)

			res, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			conn := res.Value()
			res.Release()

			pool.Close()
			pool.Close()

			_, err = pool.Acquire(context.Background())
			assert.ErrorIs(t, err, ErrPoolClosed)
			assert.True(t, conn.Transport.(*stubTransport).closed)
		})
	}
}

func TestChannelPoolReleaseAfterClose(t *testing.T) {
	var created atomic.Int32
	pool, err := NewChannelPool(stubConstructor(&created), 2)
	require.NoError(t, err)

	res, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Close()

	require.NotPanics(t, res.Release)
	assert.True(t, res.Value().Transport.(*stubTransport).closed)

	stats := pool.Stats()
	assert.EqualValues(t, 1, stats.DestroyedConns)
	assert.EqualValues(t, 0, stats.TotalConns)
	assert.EqualValues(t, 0, stats.ActiveConns)
}

func TestChannelPoolStats(t *testing.T) {
	var created atomic.Int32
	pool, err := NewChannelPool(stubConstructor(&created), 1)
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, PoolStats{}, pool.Stats())

	res, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	stats := pool.Stats()
	assert.EqualValues(t, 1, stats.TotalConns)
	assert.EqualValues(t, 1, stats.ActiveConns)
	assert.EqualValues(t, 0, stats.IdleConns)

	go func() {
		time.Sleep(20 * time.Millisecond)
		res.Release()
	}()
	res2, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	stats = pool.Stats()
	assert.EqualValues(t, 2, stats.AcquireCount)
	assert.EqualValues(t, 1, stats.AcquireWaitCount)
	assert.Greater(t, stats.AcquireWaitTimeNs, uint64(0))
	assert.EqualValues(t, 1, stats.ActiveConns)

	res2.Destroy()
	stats = pool.Stats()
	assert.EqualValues(t, 1, stats.DestroyedConns)
	assert.EqualValues(t, 0, stats.TotalConns)
	assert.EqualValues(t, 0, stats.ActiveConns)
}
