package openwire

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/wire"
)

// DefaultNegotiationTimeout bounds the wait for the peer's WireFormatInfo.
const DefaultNegotiationTimeout = 15 * time.Second

// Negotiator exchanges WireFormatInfo over an IOTransport. It sends the
// local advertisement on Start, switches the transport's Format when the
// peer's arrives, and holds outbound commands until both are done.
type Negotiator struct {
	next    *IOTransport
	local   wire.Options
	timeout time.Duration
	logger  *slog.Logger

	listener listenerSlot

	started   atomic.Bool
	sent      chan struct{}
	readyOnce sync.Once
	ready     chan struct{}
	err       error
	peer      *commands.WireFormatInfo
}

var _ Transport = (*Negotiator)(nil)

// NewNegotiator wraps next. A zero timeout means
// DefaultNegotiationTimeout.
func NewNegotiator(next *IOTransport, local wire.Options, timeout time.Duration, logger *slog.Logger) *Negotiator {
	if timeout <= 0 {
		timeout = DefaultNegotiationTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &Negotiator{
		next:    next,
		local:   local,
		timeout: timeout,
		logger:  logger,
		sent:    make(chan struct{}),
		ready:   make(chan struct{}),
	}
	next.SetListener(n)
	return n
}

// Start sends the local WireFormatInfo and starts receiving. The
// advertisement is encoded with the baseline options before the peer's
// can switch them.
func (n *Negotiator) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return nil
	}
	info := wire.LocalInfo(n.local)
	plan, err := n.next.Format().Plan(info)
	if err != nil {
		return &SendError{Op: "negotiate", Err: err}
	}
	if err := n.next.Start(ctx); err != nil {
		return err
	}
	if err := n.next.write(ctx, info, plan); err != nil {
		n.finish(nil, err)
		return err
	}
	close(n.sent)
	return nil
}

// Ready waits until the local WireFormatInfo is sent and the peer's has
// been applied, and returns the outcome of the negotiation.
func (n *Negotiator) Ready(ctx context.Context) error {
	select {
	case <-n.ready:
		if n.err != nil {
			return n.err
		}
		select {
		case <-n.sent:
			return nil
		default:
		}
	default:
	}

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	for ready, sent := n.ready, n.sent; ready != nil || sent != nil; {
		select {
		case <-ready:
			if n.err != nil {
				return n.err
			}
			ready = nil
		case <-sent:
			sent = nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("openwire: wire format negotiation: %w", ErrTimeout)
		}
	}
	return nil
}

// Peer returns the peer's WireFormatInfo, or nil before negotiation.
func (n *Negotiator) Peer() *commands.WireFormatInfo {
	select {
	case <-n.ready:
		return n.peer
	default:
		return nil
	}
}

func (n *Negotiator) finish(peer *commands.WireFormatInfo, err error) {
	n.readyOnce.Do(func() {
		n.peer = peer
		n.err = err
		close(n.ready)
	})
}

func (n *Negotiator) OnCommand(cmd commands.Command) {
	info, ok := cmd.(*commands.WireFormatInfo)
	if !ok {
		n.listener.get().OnCommand(cmd)
		return
	}

	opts, err := wire.Negotiate(n.local, info)
	if err == nil {
		err = n.next.Format().Renegotiate(opts)
	}
	if err != nil {
		err = fmt.Errorf("openwire: wire format negotiation: %w", err)
		n.finish(nil, err)
		n.next.fail(err)
		return
	}

	n.logger.Debug("openwire: negotiated wire format",
		"remote", n.next.RemoteAddress(),
		"version", opts.Version,
		"tight", opts.TightEncoding,
		"cache", opts.CacheEnabled,
	)
	n.finish(info, nil)
	n.listener.get().OnCommand(info)
}

func (n *Negotiator) OnException(err error) {
	n.finish(nil, err)
	n.listener.get().OnException(err)
}

func (n *Negotiator) Oneway(ctx context.Context, cmd commands.Command) error {
	if err := n.Ready(ctx); err != nil {
		return &SendError{Op: "oneway", Err: err}
	}
	return n.next.Oneway(ctx, cmd)
}

func (n *Negotiator) Request(ctx context.Context, cmd commands.Command) (commands.ResponseCommand, error) {
	return nil, ErrUnsupported
}

func (n *Negotiator) RequestTimeout(ctx context.Context, cmd commands.Command, timeout time.Duration) (commands.ResponseCommand, error) {
	return nil, ErrUnsupported
}

func (n *Negotiator) SetListener(l Listener) {
	n.listener.set(l)
}

func (n *Negotiator) Close() error {
	n.finish(nil, ErrClosed)
	return n.next.Close()
}

func (n *Negotiator) RemoteAddress() string {
	return n.next.RemoteAddress()
}
