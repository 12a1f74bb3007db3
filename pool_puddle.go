package openwire

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jackc/puddle/v2"
)

// NewPuddlePool creates a pool backed by github.com/jackc/puddle/v2.
func NewPuddlePool(constructor Constructor, maxSize int32) (Pool, error) {
	p := &puddlePool{}

	pool, err := puddle.NewPool(&puddle.Config[*Conn]{
		Constructor: p.dial(constructor),
		Destructor:  p.hangUp,
		MaxSize:     max(maxSize, 1),
	})
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

type puddlePool struct {
	pool   *puddle.Pool[*Conn]
	dialed atomic.Uint64
	hungUp atomic.Uint64
}

func (p *puddlePool) dial(constructor Constructor) puddle.Constructor[*Conn] {
	return func(ctx context.Context) (*Conn, error) {
		conn, err := constructor(ctx)
		if err != nil {
			return nil, err
		}
		p.dialed.Add(1)
		return conn, nil
	}
}

// hangUp closes a connection leaving the pool. Close skips the goodbye on a
// connection whose transport already failed.
func (p *puddlePool) hangUp(conn *Conn) {
	p.hungUp.Add(1)
	_ = conn.Close()
}

// brokerConn is a pooled connection. Releasing one whose transport failed
// destroys it instead of parking it idle.
type brokerConn struct {
	*puddle.Resource[*Conn]
}

func (r brokerConn) Release() {
	if r.Value().Err() != nil {
		r.Destroy()
		return
	}
	r.Resource.Release()
}

func (r brokerConn) ReleaseUnused() {
	if r.Value().Err() != nil {
		r.Destroy()
		return
	}
	r.Resource.ReleaseUnused()
}

func (p *puddlePool) Acquire(ctx context.Context) (Resource, error) {
	res, err := p.pool.Acquire(ctx)
	switch {
	case errors.Is(err, puddle.ErrClosedPool):
		return nil, ErrPoolClosed
	case err != nil:
		return nil, err
	}
	return brokerConn{res}, nil
}

func (p *puddlePool) AcquireAllIdle() []Resource {
	idle := p.pool.AcquireAllIdle()
	conns := make([]Resource, 0, len(idle))
	for _, res := range idle {
		conns = append(conns, brokerConn{res})
	}
	return conns
}

func (p *puddlePool) Close() {
	p.pool.Close()
}

func (p *puddlePool) Stats() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		TotalConns:        s.TotalResources(),
		IdleConns:         s.IdleResources(),
		ActiveConns:       s.AcquiredResources(),
		AcquireCount:      uint64(s.AcquireCount()),
		AcquireWaitCount:  uint64(s.EmptyAcquireCount()),
		AcquireWaitTimeNs: uint64(s.EmptyAcquireWaitTime().Nanoseconds()),
		AcquireErrors:     uint64(s.CanceledAcquireCount()),
		CreatedConns:      p.dialed.Load(),
		DestroyedConns:    p.hungUp.Load(),
	}
}
