package openwire

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pior/openwire/commands"
	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultMaxSize is the default number of connections per broker.
	DefaultMaxSize = 4

	defaultHealthCheckTimeout = 5 * time.Second

	// acquireAttempts bounds how many dead pooled connections an operation
	// skips before giving up.
	acquireAttempts = 3
)

// ClientConfig holds configuration for a Client.
type ClientConfig struct {
	// MaxSize is the maximum number of connections per broker.
	// Zero means DefaultMaxSize.
	MaxSize int32

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can be idle
	// before being closed. Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are checked.
	// Zero disables health checks.
	HealthCheckInterval time.Duration

	// Conn configures every connection.
	Conn Config

	// Pool creates the pool of each broker. Nil means NewChannelPool.
	Pool PoolFactory

	// SelectBroker picks the broker for a routing key.
	// Nil means DefaultSelectBroker.
	SelectBroker SelectBrokerFunc

	// NewCircuitBreaker creates the circuit breaker of a broker. Called once
	// per broker address. Nil disables circuit breaking.
	NewCircuitBreaker func(address string) *CircuitBreaker

	// Dial opens connections. Nil means Dial.
	Dial func(ctx context.Context, address string, cfg Config) (*Conn, error)

	// Logger is used by the client and, unless Conn.Logger is set, by
	// its connections. Nil discards.
	Logger *slog.Logger
}

type brokerPool struct {
	address string
	pool    Pool
	breaker *CircuitBreaker
}

// Client sends commands to a set of brokers over pooled connections. Each
// routing key, usually a destination name, maps to one broker.
type Client struct {
	brokers      Brokers
	selectBroker SelectBrokerFunc
	config       ClientConfig
	logger       *slog.Logger

	mu     sync.RWMutex
	pools  map[string]*brokerPool
	closed bool

	stopOnce        sync.Once
	stopHealthCheck chan struct{}
	healthCheckDone chan struct{}

	stats clientStatsCollector
}

// NewClient creates a client. Connections are dialed on first use.
func NewClient(brokers Brokers, config ClientConfig) (*Client, error) {
	if brokers == nil || len(brokers.List()) == 0 {
		return nil, ErrNoBrokers
	}
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultMaxSize
	}
	if config.Pool == nil {
		config.Pool = NewChannelPool
	}
	if config.SelectBroker == nil {
		config.SelectBroker = DefaultSelectBroker
	}
	if config.Dial == nil {
		config.Dial = Dial
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Conn.Logger == nil {
		config.Conn.Logger = config.Logger
	}

	c := &Client{
		brokers:         brokers,
		selectBroker:    config.SelectBroker,
		config:          config,
		logger:          config.Logger,
		pools:           make(map[string]*brokerPool),
		stopHealthCheck: make(chan struct{}),
		healthCheckDone: make(chan struct{}),
	}

	if config.HealthCheckInterval > 0 {
		go c.healthCheckLoop()
	} else {
		close(c.healthCheckDone)
	}
	return c, nil
}

// Close stops health checks and closes every pool. Connections in use are
// closed when released.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stopHealthCheck) })
	<-c.healthCheckDone

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, bp := range c.pools {
		bp.pool.Close()
	}
}

func (c *Client) poolFor(key string) (*brokerPool, error) {
	address, err := c.selectBroker(key, c.brokers.List())
	if err != nil {
		return nil, err
	}
	return c.getOrCreatePool(address)
}

func (c *Client) getOrCreatePool(address string) (*brokerPool, error) {
	c.mu.RLock()
	bp, ok := c.pools[address]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return bp, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if bp, ok := c.pools[address]; ok {
		return bp, nil
	}

	pool, err := c.config.Pool(c.constructor(address), c.config.MaxSize)
	if err != nil {
		return nil, err
	}
	bp = &brokerPool{address: address, pool: pool}
	if c.config.NewCircuitBreaker != nil {
		bp.breaker = c.config.NewCircuitBreaker(address)
	}
	c.pools[address] = bp
	return bp, nil
}

func (c *Client) constructor(address string) Constructor {
	return func(ctx context.Context) (*Conn, error) {
		conn, err := c.config.Dial(ctx, address, c.config.Conn)
		if err != nil {
			c.logger.Warn("openwire: dial failed", "broker", address, "error", err)
			return nil, err
		}
		c.logger.Debug("openwire: connected", "broker", address)
		return conn, nil
	}
}

func (c *Client) healthCheckLoop() {
	defer close(c.healthCheckDone)

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.checkAllPools()
		}
	}
}

func (c *Client) checkAllPools() {
	c.mu.RLock()
	pools := make([]*brokerPool, 0, len(c.pools))
	for _, bp := range c.pools {
		pools = append(pools, bp)
	}
	c.mu.RUnlock()

	for _, bp := range pools {
		c.checkPoolConnections(bp)
	}
}

// checkPoolConnections destroys idle connections that are too old, idle
// for too long, failed, or that cannot carry a keep-alive.
func (c *Client) checkPoolConnections(bp *brokerPool) {
	now := time.Now()
	timeout := min(c.config.HealthCheckInterval, defaultHealthCheckTimeout)

	for _, res := range bp.pool.AcquireAllIdle() {
		if c.config.MaxConnLifetime > 0 && now.Sub(res.CreationTime()) > c.config.MaxConnLifetime {
			res.Destroy()
			continue
		}
		if c.config.MaxConnIdleTime > 0 && res.IdleDuration() > c.config.MaxConnIdleTime {
			res.Destroy()
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := res.Value().Ping(ctx)
		cancel()
		if err != nil {
			c.logger.Debug("openwire: health check failed", "broker", bp.address, "error", err)
			res.Destroy()
			continue
		}
		res.ReleaseUnused()
	}
}

// exec runs fn on a pooled connection of the broker selected by key,
// through the broker's circuit breaker when there is one.
func (c *Client) exec(ctx context.Context, key string, fn func(*Conn) (commands.ResponseCommand, error)) (commands.ResponseCommand, error) {
	bp, err := c.poolFor(key)
	if err != nil {
		return nil, err
	}
	if bp.breaker == nil {
		return c.execDirect(ctx, bp, fn)
	}
	return bp.breaker.Execute(func() (commands.ResponseCommand, error) {
		return c.execDirect(ctx, bp, fn)
	})
}

func (c *Client) execDirect(ctx context.Context, bp *brokerPool, fn func(*Conn) (commands.ResponseCommand, error)) (commands.ResponseCommand, error) {
	res, err := c.acquire(ctx, bp)
	if err != nil {
		return nil, err
	}

	conn := res.Value()
	resp, err := fn(conn)
	if err != nil && (ShouldCloseConnection(err) || conn.Err() != nil) {
		res.Destroy()
	} else {
		res.Release()
	}
	return resp, err
}

// acquire skips pooled connections whose transport has failed.
func (c *Client) acquire(ctx context.Context, bp *brokerPool) (Resource, error) {
	var lastErr error
	for range acquireAttempts {
		res, err := bp.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		lastErr = res.Value().Err()
		if lastErr == nil {
			return res, nil
		}
		res.Destroy()
	}
	return nil, &SendError{Op: "acquire", Err: lastErr}
}

// Oneway sends cmd to the broker selected by key.
func (c *Client) Oneway(ctx context.Context, key string, cmd commands.Command) error {
	_, err := c.exec(ctx, key, func(conn *Conn) (commands.ResponseCommand, error) {
		return nil, conn.Oneway(ctx, cmd)
	})
	if err != nil {
		c.stats.recordError(err)
		return err
	}
	c.stats.recordOneway()
	return nil
}

// Request sends cmd to the broker selected by key and waits for the
// response. An exception response is returned along with its BrokerError.
func (c *Client) Request(ctx context.Context, key string, cmd commands.Command) (commands.ResponseCommand, error) {
	resp, err := c.exec(ctx, key, func(conn *Conn) (commands.ResponseCommand, error) {
		resp, err := conn.Request(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return resp, ResponseError(resp)
	})
	if err != nil {
		c.stats.recordError(err)
		return resp, err
	}
	c.stats.recordRequest()
	return resp, nil
}

// Send publishes msg to dest. The broker is selected by the destination's
// qualified name.
func (c *Client) Send(ctx context.Context, dest commands.Destination, msg commands.MessageCommand) error {
	if commands.IsNil(dest) {
		err := errors.New("openwire: send without destination")
		c.stats.recordError(err)
		return err
	}
	_, err := c.exec(ctx, commands.QualifiedName(dest), func(conn *Conn) (commands.ResponseCommand, error) {
		return nil, conn.Send(ctx, dest, msg)
	})
	if err != nil {
		c.stats.recordError(err)
		return err
	}
	c.stats.recordMessage()
	return nil
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// BrokerPoolStats holds the stats of one broker's pool.
type BrokerPoolStats struct {
	Address      string
	PoolStats    PoolStats
	BreakerState gobreaker.State
}

// AllPoolStats returns the stats of every broker pool created so far.
func (c *Client) AllPoolStats() []BrokerPoolStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]BrokerPoolStats, 0, len(c.pools))
	for _, bp := range c.pools {
		s := BrokerPoolStats{
			Address:   bp.address,
			PoolStats: bp.pool.Stats(),
		}
		if bp.breaker != nil {
			s.BreakerState = bp.breaker.State()
		}
		stats = append(stats, s)
	}
	return stats
}
