package commands

import (
	"bytes"
	"reflect"
)

// Data structure type identifiers.
// The values are protocol constants shared with the broker; they must never
// be reused by another type.
const (
	TypeWireFormatInfo      byte = 1
	TypeConnectionInfo      byte = 3
	TypeSessionInfo         byte = 4
	TypeProducerInfo        byte = 6
	TypeKeepAliveInfo       byte = 10
	TypeShutdownInfo        byte = 11
	TypeRemoveInfo          byte = 12
	TypeActiveMQMessage     byte = 23
	TypeActiveMQTextMessage byte = 28
	TypeResponse            byte = 30
	TypeExceptionResponse   byte = 31
	TypeJournalTopicAck     byte = 50
	TypePartialCommand      byte = 60
	TypeLastPartialCommand  byte = 61
	TypeActiveMQQueue       byte = 100
	TypeActiveMQTopic       byte = 101
	TypeActiveMQTempQueue   byte = 102
	TypeActiveMQTempTopic   byte = 103
	TypeMessageID           byte = 110
	TypeLocalTransactionID  byte = 111
	TypeConnectionID        byte = 120
	TypeSessionID           byte = 121
	TypeConsumerID          byte = 122
	TypeProducerID          byte = 123
	TypeBrokerID            byte = 124

	// TypeNull marks an absent object on the wire. No data structure uses it.
	TypeNull byte = 0
)

// DataStructure is implemented by every value that can be marshalled.
type DataStructure interface {
	// DataStructureType returns the type identifier shared with the marshaller.
	DataStructureType() byte

	// Clone returns a deep copy. The copy owns all of its nested structures.
	Clone() DataStructure

	// Equals reports structural equality, including nested structures.
	Equals(other DataStructure) bool

	// String returns a human-readable dump.
	String() string
}

// Command is a DataStructure exchanged over a transport.
type Command interface {
	DataStructure

	CommandID() int32
	SetCommandID(id int32)
	IsResponseRequired() bool
	SetResponseRequired(required bool)

	IsResponse() bool
	IsMessage() bool
	IsWireFormatInfo() bool
	IsKeepAliveInfo() bool
	IsShutdownInfo() bool
}

// ResponseCommand is a Command answering an earlier request.
type ResponseCommand interface {
	Command

	// Correlation returns the command id of the request being answered.
	Correlation() int32
}

// IsNil reports whether ds is nil or a typed nil pointer.
func IsNil(ds DataStructure) bool {
	if ds == nil {
		return true
	}
	v := reflect.ValueOf(ds)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Equal compares two possibly-nil data structures.
func Equal(a, b DataStructure) bool {
	aNil, bNil := IsNil(a), IsNil(b)
	if aNil || bNil {
		return aNil == bNil
	}
	return a.Equals(b)
}

func cloneAs[T DataStructure](v T) T {
	var zero T
	if IsNil(v) {
		return zero
	}
	return v.Clone().(T)
}

func cloneSlice[T DataStructure](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	for i, v := range s {
		out[i] = cloneAs(v)
	}
	return out
}

func equalSlice[T DataStructure](a, b []T) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// equalBytes treats nil and empty as different, as they are on the wire.
func equalBytes(a, b []byte) bool {
	return (a == nil) == (b == nil) && bytes.Equal(a, b)
}
