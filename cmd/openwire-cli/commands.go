package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pior/openwire"
	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/wire"
)

// runPing dials every broker, prints the negotiated wire format and sends a
// keep-alive.
func runPing(ctx context.Context, cfg *config, logger *slog.Logger, out io.Writer) error {
	var failed int
	for _, address := range cfg.Brokers {
		start := time.Now()
		conn, err := openwire.Dial(ctx, address, cfg.connConfig(logger))
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", address, err)
			failed++
			continue
		}

		err = conn.Ping(ctx)
		rtt := time.Since(start)
		peer := conn.WireFormat()
		_ = conn.Close()
		if err != nil {
			fmt.Fprintf(out, "%s: ping: %v\n", address, err)
			failed++
			continue
		}

		fmt.Fprintf(out, "%s: ok in %s", address, rtt.Round(time.Microsecond))
		if peer != nil {
			fmt.Fprintf(out, ", broker wire version %d", peer.Version)
		}
		fmt.Fprintln(out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d brokers unreachable", failed, len(cfg.Brokers))
	}
	return nil
}

// runSend publishes count text messages to dest through a pooled client.
func runSend(ctx context.Context, cfg *config, logger *slog.Logger, out io.Writer, dest, text string, count int, persistent bool) error {
	destination, err := commands.NewDestination(dest)
	if err != nil {
		return err
	}
	cc, err := cfg.clientConfig(logger)
	if err != nil {
		return err
	}
	client, err := openwire.NewClient(openwire.NewStaticBrokers(cfg.Brokers...), cc)
	if err != nil {
		return err
	}
	defer client.Close()

	start := time.Now()
	for i := range count {
		msg := &commands.ActiveMQTextMessage{}
		if err := msg.SetText(text, false); err != nil {
			return err
		}
		msg.Persistent = persistent
		if err := client.Send(ctx, destination, msg); err != nil {
			return fmt.Errorf("message %d: %w", i+1, err)
		}
	}

	stats := client.Stats()
	fmt.Fprintf(out, "sent %d messages to %s in %s\n", stats.Messages, commands.QualifiedName(destination), time.Since(start).Round(time.Millisecond))
	for _, bp := range client.AllPoolStats() {
		fmt.Fprintf(out, "  %s: %d connections, %d created\n", bp.Address, bp.PoolStats.TotalConns, bp.PoolStats.CreatedConns)
	}
	return nil
}

// runEncode prints the frame of a text message as a hex dump.
func runEncode(cfg *config, out io.Writer, dest, text string, persistent bool) error {
	destination, err := commands.NewDestination(dest)
	if err != nil {
		return err
	}
	format, err := wire.NewFormat(cfg.wireOptions())
	if err != nil {
		return err
	}

	producer := commands.NewConnectionID().NewSessionID(1).NewProducerID(1)
	msg := &commands.ActiveMQTextMessage{}
	if err := msg.SetText(text, false); err != nil {
		return err
	}
	msg.ProducerID = producer
	msg.MessageID = producer.NewMessageID(1)
	msg.Destination = destination
	msg.Persistent = persistent
	msg.Timestamp = time.Now().UnixMilli()

	frame, err := format.MarshalBytes(msg)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, hex.Dump(frame))
	return err
}

// runDecode reads hex frames from in and prints the commands they hold.
// Both plain hex and hex dumps are accepted.
func runDecode(cfg *config, in io.Reader, out io.Writer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	data, err := parseHex(string(raw))
	if err != nil {
		return err
	}
	format, err := wire.NewFormat(cfg.wireOptions())
	if err != nil {
		return err
	}

	r := bytes.NewReader(data)
	for {
		cmd, err := format.ReadCommand(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cmd)
		if m, ok := cmd.(*commands.ActiveMQTextMessage); ok {
			if text, err := m.Text(); err == nil {
				fmt.Fprintf(out, "  text: %q\n", text)
			}
		}
	}
}

// parseHex decodes plain hex or the output of hex.Dump.
func parseHex(s string) ([]byte, error) {
	var digits strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if i := strings.Index(line, "|"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) > 1 && len(fields[0]) == 8 && strings.Trim(fields[0], "0123456789abcdef") == "" {
			fields = fields[1:]
		}
		for _, f := range fields {
			digits.WriteString(f)
		}
	}
	return hex.DecodeString(digits.String())
}
