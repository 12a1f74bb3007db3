package commands

import (
	"fmt"

	"github.com/google/uuid"
)

// NewConnectionID returns a connection id of the form "ID:<uuid>".
func NewConnectionID() *ConnectionID {
	return &ConnectionID{Value: "ID:" + uuid.NewString()}
}

// ConnectionID identifies a client connection on the broker.
type ConnectionID struct {
	Value string
}

func (id *ConnectionID) DataStructureType() byte { return TypeConnectionID }

func (id *ConnectionID) Clone() DataStructure {
	cp := *id
	return &cp
}

func (id *ConnectionID) Equals(other DataStructure) bool {
	o, ok := other.(*ConnectionID)
	return ok && o != nil && *id == *o
}

func (id *ConnectionID) String() string {
	return dump("ConnectionId").add("value", id.Value).String()
}

// NewSessionID derives the session id with the given value under a connection.
func (id *ConnectionID) NewSessionID(value int64) *SessionID {
	return &SessionID{ConnectionID: id.Value, Value: value}
}

// SessionID identifies a session within a connection.
type SessionID struct {
	ConnectionID string
	Value        int64
}

func (id *SessionID) DataStructureType() byte { return TypeSessionID }

func (id *SessionID) Clone() DataStructure {
	cp := *id
	return &cp
}

func (id *SessionID) Equals(other DataStructure) bool {
	o, ok := other.(*SessionID)
	return ok && o != nil && *id == *o
}

func (id *SessionID) String() string {
	return dump("SessionId").add("connectionId", id.ConnectionID).add("value", id.Value).String()
}

// NewProducerID derives a producer id under a session.
func (id *SessionID) NewProducerID(value int64) *ProducerID {
	return &ProducerID{ConnectionID: id.ConnectionID, SessionID: id.Value, Value: value}
}

// NewConsumerID derives a consumer id under a session.
func (id *SessionID) NewConsumerID(value int64) *ConsumerID {
	return &ConsumerID{ConnectionID: id.ConnectionID, SessionID: id.Value, Value: value}
}

// ProducerID identifies a message producer.
type ProducerID struct {
	ConnectionID string
	Value        int64
	SessionID    int64
}

func (id *ProducerID) DataStructureType() byte { return TypeProducerID }

func (id *ProducerID) Clone() DataStructure {
	cp := *id
	return &cp
}

func (id *ProducerID) Equals(other DataStructure) bool {
	o, ok := other.(*ProducerID)
	return ok && o != nil && *id == *o
}

func (id *ProducerID) String() string {
	return dump("ProducerId").
		add("connectionId", id.ConnectionID).
		add("value", id.Value).
		add("sessionId", id.SessionID).
		String()
}

// NewMessageID derives the id of the sequence-th message sent by the producer.
func (id *ProducerID) NewMessageID(sequence int64) *MessageID {
	return &MessageID{ProducerID: id.Clone().(*ProducerID), ProducerSequenceID: sequence}
}

// ConsumerID identifies a message consumer.
type ConsumerID struct {
	ConnectionID string
	SessionID    int64
	Value        int64
}

func (id *ConsumerID) DataStructureType() byte { return TypeConsumerID }

func (id *ConsumerID) Clone() DataStructure {
	cp := *id
	return &cp
}

func (id *ConsumerID) Equals(other DataStructure) bool {
	o, ok := other.(*ConsumerID)
	return ok && o != nil && *id == *o
}

func (id *ConsumerID) String() string {
	return dump("ConsumerId").
		add("connectionId", id.ConnectionID).
		add("sessionId", id.SessionID).
		add("value", id.Value).
		String()
}

// BrokerID identifies a broker in a network of brokers.
type BrokerID struct {
	Value string
}

func (id *BrokerID) DataStructureType() byte { return TypeBrokerID }

func (id *BrokerID) Clone() DataStructure {
	cp := *id
	return &cp
}

func (id *BrokerID) Equals(other DataStructure) bool {
	o, ok := other.(*BrokerID)
	return ok && o != nil && *id == *o
}

func (id *BrokerID) String() string {
	return dump("BrokerId").add("value", id.Value).String()
}

// MessageID identifies a message by its producer and sequence numbers.
type MessageID struct {
	ProducerID         *ProducerID
	ProducerSequenceID int64
	BrokerSequenceID   int64
}

func (id *MessageID) DataStructureType() byte { return TypeMessageID }

func (id *MessageID) Clone() DataStructure {
	cp := *id
	cp.ProducerID = cloneAs(id.ProducerID)
	return &cp
}

func (id *MessageID) Equals(other DataStructure) bool {
	o, ok := other.(*MessageID)
	return ok && o != nil &&
		Equal(id.ProducerID, o.ProducerID) &&
		id.ProducerSequenceID == o.ProducerSequenceID &&
		id.BrokerSequenceID == o.BrokerSequenceID
}

func (id *MessageID) String() string {
	return dump("MessageId").
		add("producerId", id.ProducerID).
		add("producerSequenceId", id.ProducerSequenceID).
		add("brokerSequenceId", id.BrokerSequenceID).
		String()
}

// Text renders the id the way brokers print it: "<connection>:<session>:<producer>:<sequence>".
func (id *MessageID) Text() string {
	if id.ProducerID == nil {
		return fmt.Sprintf("::%d", id.ProducerSequenceID)
	}
	p := id.ProducerID
	return fmt.Sprintf("%s:%d:%d:%d", p.ConnectionID, p.SessionID, p.Value, id.ProducerSequenceID)
}

// TransactionID is implemented by transaction identifiers.
type TransactionID interface {
	DataStructure
	IsLocalTransaction() bool
}

// LocalTransactionID identifies a transaction local to one connection.
type LocalTransactionID struct {
	Value        int64
	ConnectionID *ConnectionID
}

func (id *LocalTransactionID) DataStructureType() byte  { return TypeLocalTransactionID }
func (id *LocalTransactionID) IsLocalTransaction() bool { return true }

func (id *LocalTransactionID) Clone() DataStructure {
	cp := *id
	cp.ConnectionID = cloneAs(id.ConnectionID)
	return &cp
}

func (id *LocalTransactionID) Equals(other DataStructure) bool {
	o, ok := other.(*LocalTransactionID)
	return ok && o != nil && id.Value == o.Value && Equal(id.ConnectionID, o.ConnectionID)
}

func (id *LocalTransactionID) String() string {
	return dump("LocalTransactionId").add("value", id.Value).add("connectionId", id.ConnectionID).String()
}
