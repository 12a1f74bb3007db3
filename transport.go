package openwire

import (
	"context"
	"sync"
	"time"

	"github.com/pior/openwire/commands"
)

// Transport carries commands to and from a broker.
//
// Oneway and Request may be called concurrently. Commands reach the peer in
// call order. Inbound commands that are not consumed as responses go to the
// Listener, in arrival order, on the transport's receive goroutine.
type Transport interface {
	// Start begins receiving. Commands may be sent before Start.
	Start(ctx context.Context) error

	// Oneway sends cmd without waiting for a reply.
	Oneway(ctx context.Context, cmd commands.Command) error

	// Request sends cmd with a fresh command id and waits for the correlated
	// response until ctx is done.
	Request(ctx context.Context, cmd commands.Command) (commands.ResponseCommand, error)

	// RequestTimeout is Request bounded by timeout. Zero waits until ctx is
	// done. Expiry returns ErrTimeout.
	RequestTimeout(ctx context.Context, cmd commands.Command, timeout time.Duration) (commands.ResponseCommand, error)

	SetListener(l Listener)
	Close() error
	RemoteAddress() string
}

// Listener receives inbound commands and transport failures.
type Listener interface {
	OnCommand(cmd commands.Command)
	// OnException is called once when the transport fails. The transport is
	// unusable afterwards.
	OnException(err error)
}

// ListenerFuncs adapts functions to a Listener. Nil fields ignore the event.
type ListenerFuncs struct {
	Command   func(cmd commands.Command)
	Exception func(err error)
}

func (l ListenerFuncs) OnCommand(cmd commands.Command) {
	if l.Command != nil {
		l.Command(cmd)
	}
}

func (l ListenerFuncs) OnException(err error) {
	if l.Exception != nil {
		l.Exception(err)
	}
}

type nopListener struct{}

func (nopListener) OnCommand(commands.Command) {}
func (nopListener) OnException(error)          {}

// listenerSlot holds the listener of a transport layer.
type listenerSlot struct {
	mu sync.RWMutex
	l  Listener
}

func (s *listenerSlot) set(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.l = l
}

func (s *listenerSlot) get() Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nopListener{}
	}
	return s.l
}
