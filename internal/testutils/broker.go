package testutils

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/wire"
)

// Broker is a minimal OpenWire broker for tests. It negotiates the wire
// format, records every command and answers commands requiring a response.
type Broker struct {
	// Options are advertised to clients.
	Options wire.Options

	// Respond overrides the answer to a command requiring a response. A nil
	// result sends nothing.
	Respond func(cmd commands.Command) commands.Command

	listener net.Listener

	mu       sync.Mutex
	received []commands.Command
	conns    []net.Conn
}

// NewBroker returns a broker advertising opts, without a listener.
func NewBroker(opts wire.Options) *Broker {
	return &Broker{Options: opts}
}

// StartBroker listens on a loopback port until the test ends.
func StartBroker(t testing.TB, opts wire.Options) *Broker {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := NewBroker(opts)
	b.listener = l
	t.Cleanup(b.Close)

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go b.Serve(conn)
		}
	}()
	return b
}

func (b *Broker) Addr() string {
	return b.listener.Addr().String()
}

// Received returns the commands received after negotiation.
func (b *Broker) Received() []commands.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]commands.Command(nil), b.received...)
}

// Close stops listening and drops every connection.
func (b *Broker) Close() {
	if b.listener != nil {
		_ = b.listener.Close()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		_ = c.Close()
	}
	b.conns = nil
}

// Serve runs the broker side of one connection until it fails or the
// client shuts down.
func (b *Broker) Serve(conn net.Conn) error {
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()
	defer conn.Close()

	format, err := wire.NewFormat(b.Options.Baseline())
	if err != nil {
		return err
	}
	if err := format.Marshal(wire.LocalInfo(b.Options), conn); err != nil {
		return err
	}

	r := bufio.NewReader(conn)
	first, err := format.ReadCommand(r)
	if err != nil {
		return err
	}
	info, ok := first.(*commands.WireFormatInfo)
	if !ok {
		return errors.New("testutils: client did not start with WireFormatInfo")
	}
	opts, err := wire.Negotiate(b.Options, info)
	if err != nil {
		return err
	}
	if err := format.Renegotiate(opts); err != nil {
		return err
	}

	for {
		cmd, err := format.ReadCommand(r)
		if err != nil {
			return err
		}

		b.mu.Lock()
		b.received = append(b.received, cmd)
		b.mu.Unlock()

		if cmd.IsShutdownInfo() {
			return nil
		}
		if !cmd.IsResponseRequired() {
			continue
		}
		if reply := b.reply(cmd); reply != nil {
			if err := format.Marshal(reply, conn); err != nil {
				return err
			}
		}
	}
}

func (b *Broker) reply(cmd commands.Command) commands.Command {
	if b.Respond != nil {
		return b.Respond(cmd)
	}
	if cmd.IsKeepAliveInfo() {
		return &commands.KeepAliveInfo{}
	}
	return &commands.Response{CorrelationID: cmd.CommandID()}
}
