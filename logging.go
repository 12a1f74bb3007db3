package openwire

import (
	"context"
	"log/slog"
	"time"

	"github.com/pior/openwire/commands"
)

// LoggingTransport logs every command crossing it at debug level, and
// failures at warn level.
type LoggingTransport struct {
	next     Transport
	logger   *slog.Logger
	listener listenerSlot
}

var _ Transport = (*LoggingTransport)(nil)

func NewLoggingTransport(next Transport, logger *slog.Logger) *LoggingTransport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &LoggingTransport{
		next:   next,
		logger: logger.With("remote", next.RemoteAddress()),
	}
	next.SetListener(t)
	return t
}

func (t *LoggingTransport) Start(ctx context.Context) error {
	return t.next.Start(ctx)
}

func (t *LoggingTransport) Oneway(ctx context.Context, cmd commands.Command) error {
	err := t.next.Oneway(ctx, cmd)
	if err != nil {
		t.logger.Warn("openwire: oneway failed", "command", cmd, "error", err)
		return err
	}
	t.logger.Debug("openwire: oneway", "command", cmd)
	return nil
}

func (t *LoggingTransport) Request(ctx context.Context, cmd commands.Command) (commands.ResponseCommand, error) {
	return t.RequestTimeout(ctx, cmd, 0)
}

func (t *LoggingTransport) RequestTimeout(ctx context.Context, cmd commands.Command, timeout time.Duration) (commands.ResponseCommand, error) {
	start := time.Now()
	resp, err := t.next.RequestTimeout(ctx, cmd, timeout)
	if err != nil {
		t.logger.Warn("openwire: request failed", "command", cmd, "duration", time.Since(start), "error", err)
		return nil, err
	}
	t.logger.Debug("openwire: request", "command", cmd, "response", resp, "duration", time.Since(start))
	return resp, nil
}

func (t *LoggingTransport) OnCommand(cmd commands.Command) {
	t.logger.Debug("openwire: inbound", "command", cmd)
	t.listener.get().OnCommand(cmd)
}

func (t *LoggingTransport) OnException(err error) {
	t.logger.Warn("openwire: transport exception", "error", err)
	t.listener.get().OnException(err)
}

func (t *LoggingTransport) SetListener(l Listener) {
	t.listener.set(l)
}

func (t *LoggingTransport) Close() error {
	t.logger.Debug("openwire: closing")
	return t.next.Close()
}

func (t *LoggingTransport) RemoteAddress() string {
	return t.next.RemoteAddress()
}
