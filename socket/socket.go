// Package socket implements the client connection state machine over a
// pluggable Impl. The Impl is chosen per socket through an ImplFactory.
package socket

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Socket is a client stream endpoint that moves through
// fresh, created, bound, connected, half shut down and closed.
// Closed is terminal: every later operation fails with ErrClosed, except
// Close itself which always succeeds.
//
// State transitions are serialized. Read and Write may run concurrently with
// each other and with Close; after Close they fail with ErrClosed.
type Socket struct {
	impl   Impl
	logger *slog.Logger

	mu             sync.Mutex
	created        bool
	bound          bool
	connected      bool
	inputShutdown  bool
	outputShutdown bool

	closed  atomic.Bool
	release sync.Once
}

// New creates a socket whose Impl comes from factory. A nil factory means
// plain TCP. A nil logger discards.
func New(factory ImplFactory, logger *slog.Logger) *Socket {
	if factory == nil {
		factory = TCPFactory()
	}
	return newSocket(factory(), logger)
}

// NewWithImpl creates a socket around an existing Impl.
func NewWithImpl(impl Impl, logger *slog.Logger) (*Socket, error) {
	if impl == nil {
		return nil, argError("impl", nil, "must not be nil")
	}
	return newSocket(impl, logger), nil
}

// FromConn wraps an established connection, such as one returned by a
// listener or net.Pipe, as an accepted socket.
func FromConn(c net.Conn, logger *slog.Logger) *Socket {
	s := newSocket(NewConnImpl(c), logger)
	s.Accepted()
	return s
}

func newSocket(impl Impl, logger *slog.Logger) *Socket {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Socket{impl: impl, logger: logger}
}

// Accepted marks the socket created, bound and connected, for endpoints
// obtained by accepting a connection.
func (s *Socket) Accepted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	s.bound = true
	s.connected = true
}

func (s *Socket) checkClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// ensureCreated must be called with mu held.
func (s *Socket) ensureCreated() error {
	if s.created {
		return nil
	}
	if err := s.impl.Create(); err != nil {
		return err
	}
	s.created = true
	return nil
}

// abort closes the socket after a failed bind or connect.
func (s *Socket) abort() {
	s.closed.Store(true)
	s.releaseImpl()
}

func (s *Socket) releaseImpl() {
	s.release.Do(func() {
		if err := s.impl.Close(); err != nil {
			s.logger.Warn("socket: release failed", "error", err)
		}
	})
}

// Bind sets the local address. An empty address and port 0 pick any.
func (s *Socket) Bind(address string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosed(); err != nil {
		return err
	}
	if port < 0 || port > 65535 {
		return argError("port", port, "must be within 0-65535")
	}
	if s.bound {
		return ErrAlreadyBound
	}
	if err := s.ensureCreated(); err != nil {
		return err
	}
	if err := s.impl.Bind(address, port); err != nil {
		s.abort()
		return err
	}
	s.bound = true
	return nil
}

// Connect connects without a timeout of its own; ctx still applies.
func (s *Socket) Connect(ctx context.Context, host string, port int) error {
	return s.ConnectTimeout(ctx, host, port, 0)
}

// ConnectTimeout connects to host:port, binding to an ephemeral local
// address first when needed. Expiry returns a *TimeoutError. Any failure
// closes the socket.
func (s *Socket) ConnectTimeout(ctx context.Context, host string, port int, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosed(); err != nil {
		return err
	}
	if port < 0 || port > 65535 {
		return argError("port", port, "must be within 0-65535")
	}
	if timeout < 0 {
		return argError("timeout", timeout, "must not be negative")
	}
	if s.connected {
		return ErrAlreadyConnected
	}
	if host == "" {
		return argError("host", `""`, "must not be empty")
	}
	if err := s.ensureCreated(); err != nil {
		return err
	}

	if !s.bound {
		if err := s.impl.Bind("", 0); err != nil {
			s.abort()
			return err
		}
		s.bound = true
	}
	if err := s.impl.Connect(ctx, host, port, timeout); err != nil {
		s.abort()
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	s.connected = true
	return nil
}

// ShutdownInput shuts down the read half. Later reads return io.EOF.
func (s *Socket) ShutdownInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosed(); err != nil {
		return err
	}
	if s.inputShutdown {
		return ErrInputShutdown
	}
	if !s.connected {
		return ErrNotConnected
	}
	if err := s.impl.ShutdownInput(); err != nil {
		return err
	}
	s.inputShutdown = true
	return nil
}

// ShutdownOutput shuts down the write half.
func (s *Socket) ShutdownOutput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosed(); err != nil {
		return err
	}
	if s.outputShutdown {
		return ErrOutputShutdown
	}
	if !s.connected {
		return ErrNotConnected
	}
	if err := s.impl.ShutdownOutput(); err != nil {
		return err
	}
	s.outputShutdown = true
	return nil
}

// Close marks the socket closed and releases the Impl once. It never fails
// and is safe to call repeatedly and concurrently with Read and Write.
func (s *Socket) Close() error {
	s.closed.Store(true)
	s.releaseImpl()
	return nil
}

func (s *Socket) Read(p []byte) (int, error) {
	if err := s.checkClosed(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	shut, connected := s.inputShutdown, s.connected
	s.mu.Unlock()
	if shut {
		return 0, io.EOF
	}
	if !connected {
		return 0, ErrNotConnected
	}

	n, err := s.impl.Read(p)
	if err != nil && s.closed.Load() {
		return n, ErrClosed
	}
	return n, err
}

func (s *Socket) Write(p []byte) (int, error) {
	if err := s.checkClosed(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	shut, connected := s.outputShutdown, s.connected
	s.mu.Unlock()
	if shut {
		return 0, ErrOutputShutdown
	}
	if !connected {
		return 0, ErrNotConnected
	}

	n, err := s.impl.Write(p)
	if err != nil && s.closed.Load() {
		return n, ErrClosed
	}
	return n, err
}

// SendUrgentData sends one byte of out-of-band data.
func (s *Socket) SendUrgentData(data int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosed(); err != nil {
		return err
	}
	if err := s.ensureCreated(); err != nil {
		return err
	}
	return s.impl.SendUrgentData(byte(data & 0xFF))
}

func (s *Socket) IsClosed() bool { return s.closed.Load() }

func (s *Socket) IsBound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *Socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Socket) IsInputShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputShutdown
}

func (s *Socket) IsOutputShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputShutdown
}

// RemoteAddr returns the peer address, or nil when not connected.
func (s *Socket) RemoteAddr() net.Addr {
	if !s.IsConnected() {
		return nil
	}
	return s.impl.RemoteAddr()
}

// LocalAddr returns the local address, or nil when not bound.
func (s *Socket) LocalAddr() net.Addr {
	if !s.IsBound() {
		return nil
	}
	return s.impl.LocalAddr()
}

// Port returns the remote port, or 0 when not connected.
func (s *Socket) Port() int {
	_, port := addrPort(s.RemoteAddr())
	return port
}

// InetAddress returns the remote host, or "" when not connected.
func (s *Socket) InetAddress() string {
	host, _ := addrPort(s.RemoteAddr())
	return host
}

// LocalPort returns the local port, or -1 when not bound.
func (s *Socket) LocalPort() int {
	if !s.IsBound() {
		return -1
	}
	_, port := addrPort(s.impl.LocalAddr())
	return port
}

// LocalAddress returns the local host, or "0.0.0.0" when not bound.
func (s *Socket) LocalAddress() string {
	host, _ := addrPort(s.LocalAddr())
	if host == "" {
		return "0.0.0.0"
	}
	return host
}

// SetOption validates and sets an option. Invalid values return an
// *ArgumentError without touching the Impl.
func (s *Socket) SetOption(opt Option, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosed(); err != nil {
		return err
	}
	v, err := validate(opt, value)
	if err != nil {
		return err
	}
	if err := s.ensureCreated(); err != nil {
		return err
	}
	return s.impl.SetOption(opt, v)
}

// Option returns the current value of an option.
func (s *Socket) Option(opt Option) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClosed(); err != nil {
		return 0, err
	}
	if err := s.ensureCreated(); err != nil {
		return 0, err
	}
	return s.impl.Option(opt)
}

func (s *Socket) boolOption(opt Option) (bool, error) {
	v, err := s.Option(opt)
	return v != 0, err
}

func (s *Socket) SetReceiveBufferSize(n int) error { return s.SetOption(OptReceiveBufferSize, n) }
func (s *Socket) ReceiveBufferSize() (int, error)  { return s.Option(OptReceiveBufferSize) }
func (s *Socket) SetSendBufferSize(n int) error    { return s.SetOption(OptSendBufferSize, n) }
func (s *Socket) SendBufferSize() (int, error)     { return s.Option(OptSendBufferSize) }
func (s *Socket) SetTrafficClass(tc int) error     { return s.SetOption(OptTrafficClass, tc) }
func (s *Socket) TrafficClass() (int, error)       { return s.Option(OptTrafficClass) }

func (s *Socket) SetKeepAlive(on bool) error    { return s.SetOption(OptKeepAlive, boolValue(on)) }
func (s *Socket) KeepAlive() (bool, error)      { return s.boolOption(OptKeepAlive) }
func (s *Socket) SetReuseAddress(on bool) error { return s.SetOption(OptReuseAddress, boolValue(on)) }
func (s *Socket) ReuseAddress() (bool, error)   { return s.boolOption(OptReuseAddress) }
func (s *Socket) SetNoDelay(on bool) error      { return s.SetOption(OptNoDelay, boolValue(on)) }
func (s *Socket) NoDelay() (bool, error)        { return s.boolOption(OptNoDelay) }
func (s *Socket) SetOOBInline(on bool) error    { return s.SetOption(OptOOBInline, boolValue(on)) }
func (s *Socket) OOBInline() (bool, error)      { return s.boolOption(OptOOBInline) }

// SetLinger enables lingering on close for the given seconds, capped at
// 65535, or disables it.
func (s *Socket) SetLinger(on bool, seconds int) error {
	if !on {
		return s.SetOption(OptLinger, -1)
	}
	if seconds < 0 {
		if err := s.checkClosed(); err != nil {
			return err
		}
		return argError("linger", seconds, "must not be negative")
	}
	return s.SetOption(OptLinger, seconds)
}

// Linger returns the linger time in seconds, or -1 when disabled.
func (s *Socket) Linger() (int, error) { return s.Option(OptLinger) }

// SetTimeout bounds every Read; zero disables the bound.
func (s *Socket) SetTimeout(d time.Duration) error {
	if d < 0 {
		if err := s.checkClosed(); err != nil {
			return err
		}
		return argError("timeout", d, "must not be negative")
	}
	ms := int(d / time.Millisecond)
	if d > 0 && ms == 0 {
		ms = 1
	}
	return s.SetOption(OptTimeout, ms)
}

func (s *Socket) Timeout() (time.Duration, error) {
	ms, err := s.Option(OptTimeout)
	return time.Duration(ms) * time.Millisecond, err
}

// Apply sets every option of o, stopping at the first error.
func (s *Socket) Apply(o Options) error {
	set := []struct {
		opt   Option
		value int
		skip  bool
	}{
		{OptReceiveBufferSize, o.ReceiveBufferSize, o.ReceiveBufferSize == 0},
		{OptSendBufferSize, o.SendBufferSize, o.SendBufferSize == 0},
		{OptTrafficClass, o.TrafficClass, o.TrafficClass == 0},
		{OptLinger, int(o.Linger / time.Second), o.Linger == 0},
		{OptKeepAlive, boolValue(o.KeepAlive), false},
		{OptReuseAddress, boolValue(o.ReuseAddress), false},
		{OptNoDelay, boolValue(o.NoDelay), false},
		{OptOOBInline, boolValue(o.OOBInline), false},
	}
	for _, e := range set {
		if e.skip {
			continue
		}
		if err := s.SetOption(e.opt, e.value); err != nil {
			return err
		}
	}
	if o.ReadTimeout > 0 {
		return s.SetTimeout(o.ReadTimeout)
	}
	return nil
}
