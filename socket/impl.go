package socket

import (
	"context"
	"net"
	"time"
)

// Impl is the platform side of a Socket. A Socket owns exactly one Impl and
// serializes state transitions; Read, Write and Close may run concurrently.
type Impl interface {
	// Create allocates the endpoint. It is called once, lazily.
	Create() error
	Bind(address string, port int) error
	// Connect must return a *TimeoutError when timeout (or ctx) expires.
	// A zero timeout waits until ctx is done.
	Connect(ctx context.Context, host string, port int, timeout time.Duration) error

	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ShutdownInput() error
	ShutdownOutput() error
	Close() error

	SetOption(opt Option, value int) error
	Option(opt Option) (int, error)
	SendUrgentData(b byte) error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// ImplFactory creates the Impl of a new Socket.
type ImplFactory func() Impl

// TCPFactory returns a factory of plain TCP impls.
func TCPFactory() ImplFactory {
	return func() Impl { return NewTCPImpl(nil) }
}

func addrPort(a net.Addr) (string, int) {
	switch a := a.(type) {
	case *net.TCPAddr:
		if a == nil {
			return "", 0
		}
		return a.IP.String(), a.Port
	case nil:
		return "", 0
	}
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String(), 0
	}
	p, _ := net.LookupPort("tcp", port)
	return host, p
}
