package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ConnImpl adapts an established net.Conn, such as an accepted TCP
// connection or one end of net.Pipe. It cannot bind or connect.
type ConnImpl struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool
	opts   map[Option]int
}

func NewConnImpl(c net.Conn) *ConnImpl {
	return &ConnImpl{conn: c, opts: defaultOptionValues()}
}

func (c *ConnImpl) Create() error { return nil }

func (c *ConnImpl) Bind(string, int) error { return ErrAlreadyBound }

func (c *ConnImpl) Connect(context.Context, string, int, time.Duration) error {
	return ErrAlreadyConnected
}

func (c *ConnImpl) Read(p []byte) (int, error) {
	c.mu.Lock()
	timeout := time.Duration(c.opts[OptTimeout]) * time.Millisecond
	c.mu.Unlock()
	return readWithTimeout(c.conn, p, timeout)
}

func (c *ConnImpl) Write(p []byte) (int, error) { return c.conn.Write(p) }

func (c *ConnImpl) ShutdownInput() error  { return closeHalf(c.conn, true) }
func (c *ConnImpl) ShutdownOutput() error { return closeHalf(c.conn, false) }

func (c *ConnImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *ConnImpl) SetOption(opt Option, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts[opt] = value
	return applyLive(c.conn, map[Option]int{opt: value})
}

func (c *ConnImpl) Option(opt Option) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts[opt], nil
}

func (c *ConnImpl) SendUrgentData(b byte) error {
	if _, ok := rawConn(c.conn); !ok {
		return fmt.Errorf("socket: urgent data on %T: %w", c.conn, errors.ErrUnsupported)
	}
	return sendUrgent(c.conn, b)
}

func (c *ConnImpl) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *ConnImpl) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
