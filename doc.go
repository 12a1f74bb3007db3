// Package openwire is a client for ActiveMQ brokers speaking OpenWire.
//
// A connection is a chain of transports over one stream: an IOTransport
// framing commands with a wire.Format, a Negotiator exchanging
// WireFormatInfo with the broker, and a Correlator matching responses to
// requests. Dial builds the chain over TCP or TLS and registers a
// connection, a session and a producer; Open does the same over any stream.
//
//	conn, err := openwire.Dial(ctx, "tcp://localhost:61616", openwire.Config{})
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	dest, _ := commands.NewDestination("queue://orders")
//	msg := &commands.ActiveMQTextMessage{}
//	_ = msg.SetText("hello", false)
//	err = conn.Send(ctx, dest, msg)
//
// Client spreads destinations over several brokers with pooled connections,
// optional circuit breakers and periodic health checks.
package openwire
