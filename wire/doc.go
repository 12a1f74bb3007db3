// Package wire implements the OpenWire binary encoding.
//
// Two encodings are supported. Loose encoding writes every boolean as a byte
// and every integer at full width. Tight encoding packs booleans into a
// BooleanStream written ahead of the payload, narrows longs to 0, 2, 4 or 8
// bytes, and can replace repeated objects with back-references into a
// per-frame identity cache.
//
// A Format is created with Options, usually the result of Negotiate, and is
// switched with Renegotiate once the peer's WireFormatInfo arrives:
//
//	f, _ := wire.NewFormat(wire.DefaultOptions().Baseline())
//	_ = f.Marshal(wire.LocalInfo(wire.DefaultOptions()), conn)
//	peer, _ := f.ReadCommand(conn)
//	opts, _ := wire.Negotiate(wire.DefaultOptions(), peer.(*commands.WireFormatInfo))
//	_ = f.Renegotiate(opts)
//
// Decoding errors are typed. ShouldCloseConnection tells whether the stream
// is still aligned on a frame boundary.
package wire
