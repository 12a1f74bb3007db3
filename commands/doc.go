// Package commands defines the OpenWire data structures exchanged with an
// ActiveMQ broker.
//
// Every type carries a stable one-byte type id, deep-copies with Clone,
// compares structurally with Equals and renders itself with String. Nested
// structures are owned by pointer; a nil or typed-nil pointer means absent.
//
// Message, ActiveMQDestination, ActiveMQTempDestination and BaseCommand are
// shared layers only. They are embedded by concrete types and have no type id.
package commands
