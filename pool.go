package openwire

import (
	"context"
	"errors"
	"time"
)

var ErrPoolClosed = errors.New("openwire: pool closed")

// Constructor dials a new connection for a pool.
type Constructor func(ctx context.Context) (*Conn, error)

// PoolFactory creates a pool of at most maxSize connections.
type PoolFactory func(constructor Constructor, maxSize int32) (Pool, error)

// Pool holds connections to a single broker.
type Pool interface {
	// Acquire returns an idle connection, dials a new one when the pool is
	// not full, or waits for a release until ctx is done.
	Acquire(ctx context.Context) (Resource, error)

	// AcquireAllIdle takes every idle connection, for health checks. Each
	// must be released or destroyed.
	AcquireAllIdle() []Resource

	Stats() PoolStats
	Close()
}

// Resource is a connection checked out of a Pool.
type Resource interface {
	Value() *Conn

	// Release returns the connection to the pool.
	Release()

	// ReleaseUnused returns the connection without touching its last use
	// time.
	ReleaseUnused()

	// Destroy closes the connection and frees its slot.
	Destroy()

	CreationTime() time.Time
	IdleDuration() time.Duration
}
