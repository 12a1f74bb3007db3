package socket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"maps"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// TCPImpl dials TCP, optionally wrapped in TLS. Options set before Connect
// are staged and applied to the descriptor before the handshake.
type TCPImpl struct {
	tlsConfig *tls.Config

	mu     sync.Mutex
	closed bool
	local  *net.TCPAddr
	conn   net.Conn
	opts   map[Option]int
}

// NewTCPImpl returns a TCP impl. A non-nil tlsConfig enables TLS.
func NewTCPImpl(tlsConfig *tls.Config) *TCPImpl {
	return &TCPImpl{tlsConfig: tlsConfig, opts: defaultOptionValues()}
}

// TLSFactory returns a factory of TLS impls sharing cfg.
func TLSFactory(cfg *tls.Config) ImplFactory {
	return func() Impl { return NewTCPImpl(cfg) }
}

func defaultOptionValues() map[Option]int {
	return map[Option]int{
		OptLinger:  -1,
		OptNoDelay: 1,
	}
}

func (t *TCPImpl) Create() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	return nil
}

func (t *TCPImpl) Bind(address string, port int) error {
	if address == "" && port == 0 {
		return nil
	}
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.local = addr
	t.mu.Unlock()
	return nil
}

func (t *TCPImpl) Connect(ctx context.Context, host string, port int, timeout time.Duration) error {
	t.mu.Lock()
	opts := maps.Clone(t.opts)
	local := t.local
	t.mu.Unlock()

	d := net.Dialer{
		Timeout:   timeout,
		KeepAlive: -1,
		Control: func(network, address string, c syscall.RawConn) error {
			return controlOptions(c, network, opts)
		},
	}
	if local != nil {
		d.LocalAddr = local
	}

	start := time.Now()
	address := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return connectError(err, timeout)
	}
	if err := applyLive(conn, opts); err != nil {
		conn.Close()
		return err
	}

	if t.tlsConfig != nil {
		cfg := t.tlsConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		hctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithDeadline(ctx, start.Add(timeout))
			defer cancel()
		}
		tc := tls.Client(conn, cfg)
		if err := tc.HandshakeContext(hctx); err != nil {
			conn.Close()
			return connectError(err, timeout)
		}
		conn = tc
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		conn.Close()
		return ErrClosed
	}
	t.conn = conn
	return nil
}

func connectError(err error, timeout time.Duration) error {
	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: "connect", After: timeout, Err: err}
	}
	return err
}

func (t *TCPImpl) current() (net.Conn, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, 0, ErrClosed
	}
	if t.conn == nil {
		return nil, 0, ErrNotConnected
	}
	return t.conn, time.Duration(t.opts[OptTimeout]) * time.Millisecond, nil
}

func (t *TCPImpl) Read(p []byte) (int, error) {
	conn, timeout, err := t.current()
	if err != nil {
		return 0, err
	}
	return readWithTimeout(conn, p, timeout)
}

func (t *TCPImpl) Write(p []byte) (int, error) {
	conn, _, err := t.current()
	if err != nil {
		return 0, err
	}
	return conn.Write(p)
}

func (t *TCPImpl) ShutdownInput() error {
	conn, _, err := t.current()
	if err != nil {
		return err
	}
	return closeHalf(conn, true)
}

func (t *TCPImpl) ShutdownOutput() error {
	conn, _, err := t.current()
	if err != nil {
		return err
	}
	return closeHalf(conn, false)
}

func (t *TCPImpl) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *TCPImpl) SetOption(opt Option, value int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.opts[opt] = value
	if t.conn == nil {
		return nil
	}
	return applyLive(t.conn, map[Option]int{opt: value})
}

func (t *TCPImpl) Option(opt Option) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrClosed
	}
	return t.opts[opt], nil
}

func (t *TCPImpl) SendUrgentData(b byte) error {
	conn, _, err := t.current()
	if err != nil {
		return err
	}
	if _, ok := conn.(*tls.Conn); ok {
		return fmt.Errorf("socket: urgent data over TLS: %w", errors.ErrUnsupported)
	}
	return sendUrgent(conn, b)
}

func (t *TCPImpl) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn.LocalAddr()
	}
	if t.local != nil {
		return t.local
	}
	return nil
}

func (t *TCPImpl) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

func readWithTimeout(conn net.Conn, p []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	}
	n, err := conn.Read(p)
	if err != nil && timeout > 0 {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return n, &TimeoutError{Op: "read", After: timeout, Err: err}
		}
	}
	return n, err
}

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

func closeHalf(conn net.Conn, input bool) error {
	if tc, ok := conn.(*tls.Conn); ok {
		if input {
			conn = tc.NetConn()
		} else {
			return tc.CloseWrite()
		}
	}
	hc, ok := conn.(halfCloser)
	if !ok {
		return errors.ErrUnsupported
	}
	if input {
		return hc.CloseRead()
	}
	return hc.CloseWrite()
}

// rawConn returns the descriptor access of conn, unwrapping TLS.
func rawConn(conn net.Conn) (syscall.RawConn, bool) {
	if tc, ok := conn.(*tls.Conn); ok {
		conn = tc.NetConn()
	}
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}
	return rc, true
}

// applyLive applies options to an established connection. Connections
// without a descriptor keep the staged values only.
func applyLive(conn net.Conn, opts map[Option]int) error {
	rc, ok := rawConn(conn)
	if !ok {
		return nil
	}
	network := "tcp4"
	if a, ok := conn.LocalAddr().(*net.TCPAddr); ok && a.IP.To4() == nil {
		network = "tcp6"
	}
	return controlOptions(rc, network, opts)
}
