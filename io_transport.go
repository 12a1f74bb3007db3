package openwire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/wire"
)

// IOTransport moves frames over a byte stream. Writes are serialized; one
// reader goroutine decodes frames and hands them to the listener.
// It does not correlate responses: Request returns ErrUnsupported.
type IOTransport struct {
	stream io.ReadWriteCloser
	format *wire.Format
	logger *slog.Logger

	writeMu sync.Mutex
	sink    errWriter
	writer  *bufio.Writer

	listener listenerSlot
	started  atomic.Bool
	closed   atomic.Bool
	failOnce sync.Once
	done     chan struct{}
}

var _ Transport = (*IOTransport)(nil)

// NewIOTransport creates a transport over stream using format. A nil
// logger discards.
func NewIOTransport(stream io.ReadWriteCloser, format *wire.Format, logger *slog.Logger) *IOTransport {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := &IOTransport{
		stream: stream,
		format: format,
		logger: logger,
		done:   make(chan struct{}),
	}
	t.sink.w = stream
	t.writer = bufio.NewWriter(&t.sink)
	return t
}

// errWriter remembers the first write error of the stream.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

// Format returns the codec, for renegotiation.
func (t *IOTransport) Format() *wire.Format {
	return t.format
}

func (t *IOTransport) Start(ctx context.Context) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if !t.started.CompareAndSwap(false, true) {
		return nil
	}
	go t.readLoop()
	return nil
}

// Done is closed when the reader goroutine exits.
func (t *IOTransport) Done() <-chan struct{} {
	return t.done
}

func (t *IOTransport) readLoop() {
	defer close(t.done)

	r := bufio.NewReader(t.stream)
	for {
		cmd, err := t.format.ReadCommand(r)
		if err != nil {
			if t.closed.Load() {
				return
			}
			if !wire.ShouldCloseConnection(err) {
				t.logger.Warn("openwire: skipping malformed frame", "remote", t.RemoteAddress(), "error", err)
				continue
			}
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("openwire: connection closed by peer: %w", err)
			}
			t.fail(err)
			return
		}

		t.logger.Debug("openwire: received", "remote", t.RemoteAddress(), "command", cmd)
		t.listener.get().OnCommand(cmd)
	}
}

// fail reports err once and closes the stream.
func (t *IOTransport) fail(err error) {
	t.failOnce.Do(func() {
		t.logger.Error("openwire: transport failed", "remote", t.RemoteAddress(), "error", err)
		t.closed.Store(true)
		t.closeStream()
		t.listener.get().OnException(err)
	})
}

func (t *IOTransport) Oneway(ctx context.Context, cmd commands.Command) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if cmd == nil || commands.IsNil(cmd) {
		return &SendError{Op: "oneway", Err: wire.ErrNilCommand}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Encoding failures leave the stream untouched.
	plan, err := t.format.Plan(cmd)
	if err != nil {
		return &SendError{Op: "oneway", Err: err}
	}
	return t.write(ctx, cmd, plan)
}

// write emits a planned frame. The plan keeps the encoding options of the
// moment it was made.
func (t *IOTransport) write(ctx context.Context, cmd commands.Command, plan *wire.Plan) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed.Load() {
		return ErrClosed
	}
	if dl, ok := ctx.Deadline(); ok {
		t.setWriteDeadline(dl)
		defer t.setWriteDeadline(time.Time{})
	}

	if err := t.format.Emit(plan, t.writer); err != nil {
		return t.writeFailed(err)
	}
	if err := t.writer.Flush(); err != nil {
		return t.writeFailed(err)
	}
	t.logger.Debug("openwire: sent", "remote", t.RemoteAddress(), "command", cmd)
	return nil
}

// writeFailed must be called with writeMu held.
func (t *IOTransport) writeFailed(err error) error {
	if t.closed.Load() {
		return &SendError{Op: "oneway", Err: ErrClosed}
	}
	serr := &SendError{Op: "oneway", Err: err}
	if t.sink.err == nil {
		return serr
	}
	// A partial frame may be on the wire. The listener may call back into
	// the transport, so it is notified without holding writeMu.
	t.closed.Store(true)
	go t.fail(serr)
	return serr
}

func (t *IOTransport) setWriteDeadline(dl time.Time) {
	if c, ok := t.stream.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = c.SetWriteDeadline(dl)
	}
}

func (t *IOTransport) Request(context.Context, commands.Command) (commands.ResponseCommand, error) {
	return nil, ErrUnsupported
}

func (t *IOTransport) RequestTimeout(context.Context, commands.Command, time.Duration) (commands.ResponseCommand, error) {
	return nil, ErrUnsupported
}

func (t *IOTransport) SetListener(l Listener) {
	t.listener.set(l)
}

// Close closes the stream. The reader goroutine exits without reporting an
// exception.
func (t *IOTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.closeStream()
	return nil
}

func (t *IOTransport) closeStream() {
	if err := t.stream.Close(); err != nil {
		t.logger.Warn("openwire: closing stream", "remote", t.RemoteAddress(), "error", err)
	}
}

func (t *IOTransport) RemoteAddress() string {
	if a, ok := t.stream.(interface{ RemoteAddr() net.Addr }); ok {
		if addr := a.RemoteAddr(); addr != nil {
			return addr.String()
		}
	}
	return ""
}
