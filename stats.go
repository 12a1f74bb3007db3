package openwire

import (
	"sync/atomic"
	"time"
)

// PoolStats is a snapshot of a connection pool.
//
// For Prometheus, TotalConns, IdleConns and ActiveConns are gauges; the
// remaining fields are counters. See the metrics package.
type PoolStats struct {
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait for a release
	CreatedConns      uint64 // Connections dialed
	DestroyedConns    uint64 // Connections closed by the pool
	AcquireErrors     uint64 // Failed acquires, including dial failures
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalConns  int32
	IdleConns   int32
	ActiveConns int32
}

// ClientStats is a snapshot of client operations.
type ClientStats struct {
	Oneways          uint64 // Commands sent without waiting
	Requests         uint64 // Commands sent with a response expected
	Messages         uint64 // Messages published through Send
	BrokerExceptions uint64 // Exception responses from brokers
	Errors           uint64 // Failed operations, of any kind
}

type poolStatsCollector struct {
	acquireCount      atomic.Uint64
	acquireWaitCount  atomic.Uint64
	createdConns      atomic.Uint64
	destroyedConns    atomic.Uint64
	acquireErrors     atomic.Uint64
	acquireWaitTimeNs atomic.Uint64

	totalConns  atomic.Int32
	idleConns   atomic.Int32
	activeConns atomic.Int32
}

func (c *poolStatsCollector) recordAcquire() {
	c.acquireCount.Add(1)
}

func (c *poolStatsCollector) recordAcquireWaiting() {
	c.acquireWaitCount.Add(1)
}

func (c *poolStatsCollector) recordAcquireWaitTime(d time.Duration) {
	c.acquireWaitTimeNs.Add(uint64(d.Nanoseconds()))
}

func (c *poolStatsCollector) recordAcquireError() {
	c.acquireErrors.Add(1)
}

// recordCreate counts a new connection, handed out directly.
func (c *poolStatsCollector) recordCreate() {
	c.createdConns.Add(1)
	c.totalConns.Add(1)
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordAcquireFromIdle() {
	c.idleConns.Add(-1)
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordRelease() {
	c.idleConns.Add(1)
	c.activeConns.Add(-1)
}

func (c *poolStatsCollector) recordDestroyActive() {
	c.destroyedConns.Add(1)
	c.totalConns.Add(-1)
	c.activeConns.Add(-1)
}

func (c *poolStatsCollector) recordDestroyIdle() {
	c.destroyedConns.Add(1)
	c.totalConns.Add(-1)
	c.idleConns.Add(-1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		AcquireCount:      c.acquireCount.Load(),
		AcquireWaitCount:  c.acquireWaitCount.Load(),
		CreatedConns:      c.createdConns.Load(),
		DestroyedConns:    c.destroyedConns.Load(),
		AcquireErrors:     c.acquireErrors.Load(),
		AcquireWaitTimeNs: c.acquireWaitTimeNs.Load(),
		TotalConns:        c.totalConns.Load(),
		IdleConns:         c.idleConns.Load(),
		ActiveConns:       c.activeConns.Load(),
	}
}

type clientStatsCollector struct {
	oneways          atomic.Uint64
	requests         atomic.Uint64
	messages         atomic.Uint64
	brokerExceptions atomic.Uint64
	errors           atomic.Uint64
}

func (c *clientStatsCollector) recordOneway()  { c.oneways.Add(1) }
func (c *clientStatsCollector) recordRequest() { c.requests.Add(1) }
func (c *clientStatsCollector) recordMessage() { c.messages.Add(1) }

func (c *clientStatsCollector) recordError(err error) {
	c.errors.Add(1)
	if isBrokerError(err) {
		c.brokerExceptions.Add(1)
	}
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Oneways:          c.oneways.Load(),
		Requests:         c.requests.Load(),
		Messages:         c.messages.Load(),
		BrokerExceptions: c.brokerExceptions.Load(),
		Errors:           c.errors.Load(),
	}
}
