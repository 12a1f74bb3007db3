package openwire

import (
	"context"
	"sync"
	"time"

	"github.com/pior/openwire/internal/coarsetime"
)

// NewChannelPool creates a pool backed by a buffered channel of idle
// connections. It is the default pool.
func NewChannelPool(constructor Constructor, maxSize int32) (Pool, error) {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &channelPool{
		constructor: constructor,
		maxSize:     maxSize,
		idle:        make(chan *channelResource, maxSize),
		freed:       make(chan struct{}, 1),
	}, nil
}

type channelResource struct {
	conn         *Conn
	pool         *channelPool
	creationTime time.Time
	lastUsedTime time.Time
}

func (r *channelResource) Value() *Conn {
	return r.conn
}

// Release parks the connection idle, or destroys it when its transport
// failed while it was in use.
func (r *channelResource) Release() {
	if r.conn.Err() != nil {
		r.Destroy()
		return
	}
	r.lastUsedTime = coarsetime.Now()
	r.pool.put(r)
}

func (r *channelResource) ReleaseUnused() {
	if r.conn.Err() != nil {
		r.Destroy()
		return
	}
	r.pool.put(r)
}

func (r *channelResource) Destroy() {
	_ = r.conn.Close()
	r.pool.remove()
	r.pool.stats.recordDestroyActive()
}

func (r *channelResource) CreationTime() time.Time {
	return r.creationTime
}

func (r *channelResource) IdleDuration() time.Duration {
	return coarsetime.Now().Sub(r.lastUsedTime)
}

type channelPool struct {
	constructor Constructor
	maxSize     int32

	mu     sync.Mutex
	idle   chan *channelResource
	freed  chan struct{}
	size   int32
	closed bool

	stats poolStatsCollector
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	select {
	case res, ok := <-p.idle:
		if ok {
			p.stats.recordAcquireFromIdle()
			return res, nil
		}
	default:
	}

	waitStart := time.Now()
	waited := false
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}
		if p.size < p.maxSize {
			p.size++
			p.mu.Unlock()
			return p.create(ctx)
		}
		p.mu.Unlock()

		if !waited {
			waited = true
			p.stats.recordAcquireWaiting()
		}

		select {
		case res, ok := <-p.idle:
			if !ok {
				p.stats.recordAcquireError()
				return nil, ErrPoolClosed
			}
			p.stats.recordAcquireWaitTime(time.Since(waitStart))
			p.stats.recordAcquireFromIdle()
			return res, nil
		case <-p.freed:
		case <-ctx.Done():
			p.stats.recordAcquireError()
			return nil, ctx.Err()
		}
	}
}

// create dials into a slot already counted in size.
func (p *channelPool) create(ctx context.Context) (Resource, error) {
	conn, err := p.constructor(ctx)
	if err != nil {
		p.remove()
		p.stats.recordAcquireError()
		return nil, err
	}

	p.stats.recordCreate()
	now := coarsetime.Now()
	return &channelResource{
		conn:         conn,
		pool:         p,
		creationTime: now,
		lastUsedTime: now,
	}, nil
}

func (p *channelPool) put(res *channelResource) {
	p.mu.Lock()
	if !p.closed {
		select {
		case p.idle <- res:
			p.mu.Unlock()
			p.stats.recordRelease()
			return
		default:
		}
	}
	p.mu.Unlock()

	_ = res.conn.Close()
	p.remove()
	p.stats.recordDestroyActive()
}

// remove frees a slot and wakes one waiter.
func (p *channelPool) remove() {
	p.mu.Lock()
	p.size--
	p.mu.Unlock()

	select {
	case p.freed <- struct{}{}:
	default:
	}
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var idle []Resource
	for {
		select {
		case res, ok := <-p.idle:
			if !ok {
				return idle
			}
			p.stats.recordAcquireFromIdle()
			idle = append(idle, res)
		default:
			return idle
		}
	}
}

// Close closes the idle connections. Connections in use are closed when
// released.
func (p *channelPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	for res := range p.idle {
		_ = res.conn.Close()
		p.remove()
		p.stats.recordDestroyIdle()
	}
}

func (p *channelPool) Stats() PoolStats {
	return p.stats.snapshot()
}
