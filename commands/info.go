package commands

import (
	"bytes"
	"maps"
	"reflect"
)

// Magic is the fixed prefix of every WireFormatInfo.
var Magic = []byte("ActiveMQ")

// Well-known WireFormatInfo property keys.
const (
	PropStackTraceEnabled         = "StackTraceEnabled"
	PropCacheEnabled              = "CacheEnabled"
	PropCacheSize                 = "CacheSize"
	PropTightEncodingEnabled      = "TightEncodingEnabled"
	PropSizePrefixDisabled        = "SizePrefixDisabled"
	PropTCPNoDelayEnabled         = "TcpNoDelayEnabled"
	PropMaxInactivityDuration     = "MaxInactivityDuration"
	PropMaxInactivityInitialDelay = "MaxInactivityDurationInitalDelay"
	PropMaxFrameSize              = "MaxFrameSize"
)

// WireFormatInfo advertises the sender's protocol version and encoding
// options. Only Magic, Version and Properties travel on the wire.
type WireFormatInfo struct {
	BaseCommand
	Magic      []byte
	Version    int32
	Properties map[string]any
}

// NewWireFormatInfo returns an info with the magic set and no properties.
func NewWireFormatInfo(version int32) *WireFormatInfo {
	return &WireFormatInfo{
		Magic:      bytes.Clone(Magic),
		Version:    version,
		Properties: map[string]any{},
	}
}

func (c *WireFormatInfo) DataStructureType() byte { return TypeWireFormatInfo }
func (c *WireFormatInfo) IsWireFormatInfo() bool  { return true }

// Valid reports whether the magic matches.
func (c *WireFormatInfo) Valid() bool {
	return bytes.Equal(c.Magic, Magic)
}

// Bool returns a boolean property.
func (c *WireFormatInfo) Bool(key string) (bool, bool) {
	v, ok := c.Properties[key].(bool)
	return v, ok
}

// Int returns an integral property widened to int64.
func (c *WireFormatInfo) Int(key string) (int64, bool) {
	switch v := c.Properties[key].(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func (c *WireFormatInfo) Set(key string, value any) {
	if c.Properties == nil {
		c.Properties = map[string]any{}
	}
	c.Properties[key] = value
}

func (c *WireFormatInfo) Clone() DataStructure {
	cp := *c
	cp.Magic = cloneBytes(c.Magic)
	if c.Properties != nil {
		cp.Properties = make(map[string]any, len(c.Properties))
		for k, v := range c.Properties {
			if b, ok := v.([]byte); ok {
				v = cloneBytes(b)
			}
			cp.Properties[k] = v
		}
	}
	return &cp
}

func (c *WireFormatInfo) Equals(other DataStructure) bool {
	o, ok := other.(*WireFormatInfo)
	if !ok || o == nil {
		return false
	}
	return bytes.Equal(c.Magic, o.Magic) &&
		c.Version == o.Version &&
		maps.EqualFunc(c.Properties, o.Properties, func(a, b any) bool { return reflect.DeepEqual(a, b) })
}

func (c *WireFormatInfo) String() string {
	return dump("WireFormatInfo").
		add("magic", string(c.Magic)).
		add("version", c.Version).
		add("properties", c.Properties).
		String()
}

// ConnectionInfo opens a connection on the broker.
type ConnectionInfo struct {
	BaseCommand
	ConnectionID          *ConnectionID
	ClientID              string
	Password              string
	UserName              string
	BrokerPath            []*BrokerID
	BrokerMasterConnector bool
	Manageable            bool
	// ClientMaster needs protocol version 2 or later.
	ClientMaster bool
}

func (c *ConnectionInfo) DataStructureType() byte { return TypeConnectionInfo }

func (c *ConnectionInfo) Clone() DataStructure {
	cp := *c
	cp.ConnectionID = cloneAs(c.ConnectionID)
	cp.BrokerPath = cloneSlice(c.BrokerPath)
	return &cp
}

func (c *ConnectionInfo) Equals(other DataStructure) bool {
	o, ok := other.(*ConnectionInfo)
	return ok && o != nil &&
		c.BaseCommand == o.BaseCommand &&
		Equal(c.ConnectionID, o.ConnectionID) &&
		c.ClientID == o.ClientID &&
		c.Password == o.Password &&
		c.UserName == o.UserName &&
		equalSlice(c.BrokerPath, o.BrokerPath) &&
		c.BrokerMasterConnector == o.BrokerMasterConnector &&
		c.Manageable == o.Manageable &&
		c.ClientMaster == o.ClientMaster
}

func (c *ConnectionInfo) String() string {
	return c.dumpFields(dump("ConnectionInfo")).
		add("connectionId", c.ConnectionID).
		add("clientId", c.ClientID).
		add("userName", c.UserName).
		add("brokerPath", c.BrokerPath).
		add("manageable", c.Manageable).
		add("clientMaster", c.ClientMaster).
		String()
}

// SessionInfo opens a session within a connection.
type SessionInfo struct {
	BaseCommand
	SessionID *SessionID
}

func (c *SessionInfo) DataStructureType() byte { return TypeSessionInfo }

func (c *SessionInfo) Clone() DataStructure {
	cp := *c
	cp.SessionID = cloneAs(c.SessionID)
	return &cp
}

func (c *SessionInfo) Equals(other DataStructure) bool {
	o, ok := other.(*SessionInfo)
	return ok && o != nil && c.BaseCommand == o.BaseCommand && Equal(c.SessionID, o.SessionID)
}

func (c *SessionInfo) String() string {
	return c.dumpFields(dump("SessionInfo")).add("sessionId", c.SessionID).String()
}

// ProducerInfo registers a producer.
type ProducerInfo struct {
	BaseCommand
	ProducerID  *ProducerID
	Destination Destination
	BrokerPath  []*BrokerID
	// DispatchAsync needs protocol version 2 or later.
	DispatchAsync bool
	// WindowSize needs protocol version 3 or later.
	WindowSize int32
}

func (c *ProducerInfo) DataStructureType() byte { return TypeProducerInfo }

func (c *ProducerInfo) Clone() DataStructure {
	cp := *c
	cp.ProducerID = cloneAs(c.ProducerID)
	cp.Destination = cloneAs(c.Destination)
	cp.BrokerPath = cloneSlice(c.BrokerPath)
	return &cp
}

func (c *ProducerInfo) Equals(other DataStructure) bool {
	o, ok := other.(*ProducerInfo)
	return ok && o != nil &&
		c.BaseCommand == o.BaseCommand &&
		Equal(c.ProducerID, o.ProducerID) &&
		Equal(c.Destination, o.Destination) &&
		equalSlice(c.BrokerPath, o.BrokerPath) &&
		c.DispatchAsync == o.DispatchAsync &&
		c.WindowSize == o.WindowSize
}

func (c *ProducerInfo) String() string {
	return c.dumpFields(dump("ProducerInfo")).
		add("producerId", c.ProducerID).
		add("destination", c.Destination).
		add("brokerPath", c.BrokerPath).
		add("dispatchAsync", c.DispatchAsync).
		add("windowSize", c.WindowSize).
		String()
}

// JournalTopicAck records a durable subscription acknowledgement.
// It is a data structure, not a command.
type JournalTopicAck struct {
	Destination       Destination
	MessageID         *MessageID
	MessageSequenceID int64
	SubscriptionName  string
	ClientID          string
	TransactionID     TransactionID
}

func (c *JournalTopicAck) DataStructureType() byte { return TypeJournalTopicAck }

func (c *JournalTopicAck) Clone() DataStructure {
	cp := *c
	cp.Destination = cloneAs(c.Destination)
	cp.MessageID = cloneAs(c.MessageID)
	cp.TransactionID = cloneAs(c.TransactionID)
	return &cp
}

func (c *JournalTopicAck) Equals(other DataStructure) bool {
	o, ok := other.(*JournalTopicAck)
	return ok && o != nil &&
		Equal(c.Destination, o.Destination) &&
		Equal(c.MessageID, o.MessageID) &&
		c.MessageSequenceID == o.MessageSequenceID &&
		c.SubscriptionName == o.SubscriptionName &&
		c.ClientID == o.ClientID &&
		Equal(c.TransactionID, o.TransactionID)
}

func (c *JournalTopicAck) String() string {
	return dump("JournalTopicAck").
		add("destination", c.Destination).
		add("messageId", c.MessageID).
		add("messageSequenceId", c.MessageSequenceID).
		add("subscriptionName", c.SubscriptionName).
		add("clientId", c.ClientID).
		add("transactionId", c.TransactionID).
		String()
}
