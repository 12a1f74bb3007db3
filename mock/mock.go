// Package mock provides an in-memory openwire.Transport. A simulated broker
// answers commands through a ResponseBuilder, and faults can be scripted
// after a number of sent or received messages.
package mock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/openwire"
	"github.com/pior/openwire/commands"
)

var (
	ErrSendFailed    = errors.New("mock: failed to send message")
	ErrReceiveFailed = errors.New("mock: failed to receive message")
	ErrNoBuilder     = errors.New("mock: no response builder")
)

// ResponseBuilder synthesizes the broker's answer to a command. A nil
// response means the broker never answers.
type ResponseBuilder interface {
	BuildResponse(cmd commands.Command) commands.ResponseCommand
}

type ResponseBuilderFunc func(cmd commands.Command) commands.ResponseCommand

func (f ResponseBuilderFunc) BuildResponse(cmd commands.Command) commands.ResponseCommand {
	return f(cmd)
}

// Acknowledge answers every command with a plain Response.
var Acknowledge = ResponseBuilderFunc(func(cmd commands.Command) commands.ResponseCommand {
	return &commands.Response{CorrelationID: cmd.CommandID()}
})

// Transport implements openwire.Transport in memory.
type Transport struct {
	builder ResponseBuilder
	address string

	nextID atomic.Int32
	closed atomic.Bool

	mu               sync.Mutex
	listener         openwire.Listener
	outgoing         openwire.Listener
	sent             int
	received         int
	failSendAfter    int
	failReceiveAfter int
}

var _ openwire.Transport = (*Transport)(nil)

// New creates a transport answering through builder. A nil builder makes
// every Request fail.
func New(builder ResponseBuilder) *Transport {
	return &Transport{
		builder:          builder,
		address:          "mock://localhost",
		failSendAfter:    -1,
		failReceiveAfter: -1,
	}
}

// FailOnSendMessage makes every message sent after the first n fail.
// A negative n disables the fault.
func (t *Transport) FailOnSendMessage(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failSendAfter = n
}

// FailOnReceiveMessage makes every message received after the first n
// fail the transport instead of being delivered. A negative n disables the
// fault.
func (t *Transport) FailOnReceiveMessage(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failReceiveAfter = n
}

func (t *Transport) MessagesSent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

func (t *Transport) MessagesReceived() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.received
}

// SetOutgoingListener registers a listener observing every command that
// would have gone on the wire.
func (t *Transport) SetOutgoingListener(l openwire.Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outgoing = l
}

func (t *Transport) SetListener(l openwire.Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = l
}

func (t *Transport) Start(ctx context.Context) error {
	if t.closed.Load() {
		return openwire.ErrClosed
	}
	return nil
}

// send counts cmd and applies the send fault.
func (t *Transport) send(op string, cmd commands.Command) (outgoing openwire.Listener, err error) {
	if t.closed.Load() {
		return nil, openwire.ErrClosed
	}
	if cmd == nil || commands.IsNil(cmd) {
		return nil, &openwire.SendError{Op: op, Err: errors.New("mock: nil command")}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cmd.IsMessage() {
		if t.failSendAfter >= 0 && t.sent >= t.failSendAfter {
			return nil, &openwire.SendError{Op: op, Err: ErrSendFailed}
		}
		t.sent++
	}
	return t.outgoing, nil
}

// Oneway hands cmd to the simulated broker. A command requiring a response
// gets one from the builder, delivered to the listener before Oneway
// returns.
func (t *Transport) Oneway(ctx context.Context, cmd commands.Command) error {
	outgoing, err := t.send("oneway", cmd)
	if err != nil {
		return err
	}
	if outgoing != nil {
		outgoing.OnCommand(cmd)
	}

	if cmd.IsResponseRequired() && t.builder != nil {
		if resp := t.builder.BuildResponse(cmd); resp != nil {
			t.Fire(resp)
		}
	}
	return nil
}

func (t *Transport) Request(ctx context.Context, cmd commands.Command) (commands.ResponseCommand, error) {
	return t.RequestTimeout(ctx, cmd, 0)
}

// RequestTimeout assigns the next command id and returns the builder's
// response. Without a response it waits for the timeout, or for ctx when
// timeout is zero.
func (t *Transport) RequestTimeout(ctx context.Context, cmd commands.Command, timeout time.Duration) (commands.ResponseCommand, error) {
	if t.builder == nil {
		return nil, &openwire.SendError{Op: "request", Err: ErrNoBuilder}
	}
	outgoing, err := t.send("request", cmd)
	if err != nil {
		return nil, err
	}

	cmd.SetCommandID(t.nextID.Add(1))
	cmd.SetResponseRequired(true)
	if outgoing != nil {
		outgoing.OnCommand(cmd)
	}

	if resp := t.builder.BuildResponse(cmd); resp != nil {
		return resp, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-expired:
		return nil, openwire.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fire delivers cmd to the listener as if the broker had sent it. Messages
// count toward the receive fault, which reports an exception instead.
func (t *Transport) Fire(cmd commands.Command) {
	t.mu.Lock()
	listener := t.listener
	failed := false
	if cmd.IsMessage() {
		if t.failReceiveAfter >= 0 && t.received >= t.failReceiveAfter {
			failed = true
		} else {
			t.received++
		}
	}
	t.mu.Unlock()

	if listener == nil {
		return
	}
	if failed {
		listener.OnException(ErrReceiveFailed)
		return
	}
	listener.OnCommand(cmd)
}

func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}

func (t *Transport) RemoteAddress() string {
	return t.address
}
