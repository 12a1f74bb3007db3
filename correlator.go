package openwire

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/openwire/commands"
)

type result struct {
	resp commands.ResponseCommand
	err  error
}

// Correlator adds request/response matching on top of a oneway transport.
// Every outbound command gets the next command id; responses are routed to
// their waiting request by correlation id. Responses nobody waits for are
// logged and dropped.
type Correlator struct {
	next   Transport
	logger *slog.Logger

	nextID   atomic.Int32
	listener listenerSlot

	mu      sync.Mutex
	pending map[int32]chan result
	failure error
}

var _ Transport = (*Correlator)(nil)

func NewCorrelator(next Transport, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Correlator{
		next:    next,
		logger:  logger,
		pending: make(map[int32]chan result),
	}
	next.SetListener(c)
	return c
}

func (c *Correlator) Start(ctx context.Context) error {
	return c.next.Start(ctx)
}

func (c *Correlator) Oneway(ctx context.Context, cmd commands.Command) error {
	if cmd == nil || commands.IsNil(cmd) {
		return c.next.Oneway(ctx, cmd)
	}
	cmd.SetCommandID(c.nextID.Add(1))
	cmd.SetResponseRequired(false)
	return c.next.Oneway(ctx, cmd)
}

func (c *Correlator) Request(ctx context.Context, cmd commands.Command) (commands.ResponseCommand, error) {
	return c.RequestTimeout(ctx, cmd, 0)
}

func (c *Correlator) RequestTimeout(ctx context.Context, cmd commands.Command, timeout time.Duration) (commands.ResponseCommand, error) {
	if cmd == nil || commands.IsNil(cmd) {
		return nil, c.next.Oneway(ctx, cmd)
	}

	id := c.nextID.Add(1)
	cmd.SetCommandID(id)
	cmd.SetResponseRequired(true)

	ch := make(chan result, 1)
	c.mu.Lock()
	if c.failure != nil {
		err := c.failure
		c.mu.Unlock()
		return nil, &SendError{Op: "request", Err: err}
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.next.Oneway(ctx, cmd); err != nil {
		c.forget(id)
		return nil, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-expired:
		c.forget(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Correlator) forget(id int32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Pending returns the number of requests waiting for a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) OnCommand(cmd commands.Command) {
	resp, ok := cmd.(commands.ResponseCommand)
	if !ok || !resp.IsResponse() {
		c.onUnsolicited(cmd)
		return
	}

	c.mu.Lock()
	ch, found := c.pending[resp.Correlation()]
	delete(c.pending, resp.Correlation())
	c.mu.Unlock()

	if !found {
		c.logger.Warn("openwire: discarding response without pending request",
			"remote", c.next.RemoteAddress(), "correlation_id", resp.Correlation())
		return
	}
	ch <- result{resp: resp}
}

// onUnsolicited answers keep-alive probes and forwards everything else.
func (c *Correlator) onUnsolicited(cmd commands.Command) {
	if cmd.IsKeepAliveInfo() && cmd.IsResponseRequired() {
		go func() {
			if err := c.Oneway(context.Background(), &commands.KeepAliveInfo{}); err != nil {
				c.logger.Debug("openwire: keep-alive reply failed", "error", err)
			}
		}()
		return
	}
	c.listener.get().OnCommand(cmd)
}

func (c *Correlator) OnException(err error) {
	c.failAll(err)
	c.listener.get().OnException(err)
}

func (c *Correlator) failAll(err error) {
	c.mu.Lock()
	if c.failure == nil {
		c.failure = err
	}
	pending := c.pending
	c.pending = make(map[int32]chan result)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: &SendError{Op: "request", Err: err}}
	}
}

func (c *Correlator) SetListener(l Listener) {
	c.listener.set(l)
}

// Close fails waiting requests with ErrClosed and closes the transport.
func (c *Correlator) Close() error {
	c.failAll(ErrClosed)
	return c.next.Close()
}

func (c *Correlator) RemoteAddress() string {
	return c.next.RemoteAddress()
}
