package commands

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

var ErrTextBody = errors.New("commands: malformed text message body")

// MessageCommand is implemented by every concrete message type.
type MessageCommand interface {
	Command
	BaseMessage() *Message
}

// Message holds the fields shared by all message types. It has no type id of
// its own and is only used embedded.
type Message struct {
	BaseCommand

	ProducerID            *ProducerID
	Destination           Destination
	TransactionID         TransactionID
	OriginalDestination   Destination
	MessageID             *MessageID
	OriginalTransactionID TransactionID
	GroupID               string
	GroupSequence         int32
	CorrelationID         string
	Persistent            bool
	Expiration            int64
	Priority              byte
	ReplyTo               Destination
	Timestamp             int64
	Type                  string
	Content               []byte
	MarshalledProperties  []byte
	Structure             DataStructure
	TargetConsumerID      *ConsumerID
	Compressed            bool
	RedeliveryCounter     int32
	BrokerPath            []*BrokerID
	Arrival               int64
	UserID                string
	ReceivedByDFBridge    bool

	// Droppable needs protocol version 2 or later.
	Droppable bool
	// Cluster, BrokerInTime and BrokerOutTime need protocol version 3 or
	// later.
	Cluster       []*BrokerID
	BrokerInTime  int64
	BrokerOutTime int64
}

func (m *Message) IsMessage() bool        { return true }
func (m *Message) BaseMessage() *Message { return m }

func (m *Message) cloneMessage() Message {
	cp := *m
	cp.ProducerID = cloneAs(m.ProducerID)
	cp.Destination = cloneAs(m.Destination)
	cp.TransactionID = cloneAs(m.TransactionID)
	cp.OriginalDestination = cloneAs(m.OriginalDestination)
	cp.MessageID = cloneAs(m.MessageID)
	cp.OriginalTransactionID = cloneAs(m.OriginalTransactionID)
	cp.ReplyTo = cloneAs(m.ReplyTo)
	cp.Content = cloneBytes(m.Content)
	cp.MarshalledProperties = cloneBytes(m.MarshalledProperties)
	cp.Structure = cloneAs(m.Structure)
	cp.TargetConsumerID = cloneAs(m.TargetConsumerID)
	cp.BrokerPath = cloneSlice(m.BrokerPath)
	cp.Cluster = cloneSlice(m.Cluster)
	return cp
}

func (m *Message) equalMessage(o *Message) bool {
	return m.BaseCommand == o.BaseCommand &&
		Equal(m.ProducerID, o.ProducerID) &&
		Equal(m.Destination, o.Destination) &&
		Equal(m.TransactionID, o.TransactionID) &&
		Equal(m.OriginalDestination, o.OriginalDestination) &&
		Equal(m.MessageID, o.MessageID) &&
		Equal(m.OriginalTransactionID, o.OriginalTransactionID) &&
		m.GroupID == o.GroupID &&
		m.GroupSequence == o.GroupSequence &&
		m.CorrelationID == o.CorrelationID &&
		m.Persistent == o.Persistent &&
		m.Expiration == o.Expiration &&
		m.Priority == o.Priority &&
		Equal(m.ReplyTo, o.ReplyTo) &&
		m.Timestamp == o.Timestamp &&
		m.Type == o.Type &&
		equalBytes(m.Content, o.Content) &&
		equalBytes(m.MarshalledProperties, o.MarshalledProperties) &&
		Equal(m.Structure, o.Structure) &&
		Equal(m.TargetConsumerID, o.TargetConsumerID) &&
		m.Compressed == o.Compressed &&
		m.RedeliveryCounter == o.RedeliveryCounter &&
		equalSlice(m.BrokerPath, o.BrokerPath) &&
		m.Arrival == o.Arrival &&
		m.UserID == o.UserID &&
		m.ReceivedByDFBridge == o.ReceivedByDFBridge &&
		m.Droppable == o.Droppable &&
		equalSlice(m.Cluster, o.Cluster) &&
		m.BrokerInTime == o.BrokerInTime &&
		m.BrokerOutTime == o.BrokerOutTime
}

func (m *Message) dumpMessage(d *dumper) *dumper {
	return m.dumpFields(d).
		add("producerId", m.ProducerID).
		add("destination", m.Destination).
		add("transactionId", m.TransactionID).
		add("messageId", m.MessageID).
		add("correlationId", m.CorrelationID).
		add("persistent", m.Persistent).
		add("priority", m.Priority).
		add("timestamp", m.Timestamp).
		add("content", m.Content).
		add("compressed", m.Compressed).
		add("redeliveryCounter", m.RedeliveryCounter)
}

// SetBody stores body as the message content, zlib-compressed when compress
// is set.
func (m *Message) SetBody(body []byte, compress bool) error {
	if !compress {
		m.Content = cloneBytes(body)
		m.Compressed = false
		return nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return fmt.Errorf("commands: compress body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("commands: compress body: %w", err)
	}
	m.Content = buf.Bytes()
	m.Compressed = true
	return nil
}

// Body returns the message content, inflating it when Compressed is set.
func (m *Message) Body() ([]byte, error) {
	if !m.Compressed || m.Content == nil {
		return m.Content, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(m.Content))
	if err != nil {
		return nil, fmt.Errorf("commands: inflate body: %w", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("commands: inflate body: %w", err)
	}
	return body, nil
}

// ActiveMQMessage is a message with an opaque body.
type ActiveMQMessage struct {
	Message
}

func (m *ActiveMQMessage) DataStructureType() byte { return TypeActiveMQMessage }

func (m *ActiveMQMessage) Clone() DataStructure {
	return &ActiveMQMessage{Message: m.cloneMessage()}
}

func (m *ActiveMQMessage) Equals(other DataStructure) bool {
	o, ok := other.(*ActiveMQMessage)
	return ok && o != nil && m.equalMessage(&o.Message)
}

func (m *ActiveMQMessage) String() string {
	return m.dumpMessage(dump("ActiveMQMessage")).String()
}

// ActiveMQTextMessage carries a string body encoded as a 4-byte length and
// UTF-8 bytes.
type ActiveMQTextMessage struct {
	Message
}

func (m *ActiveMQTextMessage) DataStructureType() byte { return TypeActiveMQTextMessage }

func (m *ActiveMQTextMessage) Clone() DataStructure {
	return &ActiveMQTextMessage{Message: m.cloneMessage()}
}

func (m *ActiveMQTextMessage) Equals(other DataStructure) bool {
	o, ok := other.(*ActiveMQTextMessage)
	return ok && o != nil && m.equalMessage(&o.Message)
}

func (m *ActiveMQTextMessage) String() string {
	return m.dumpMessage(dump("ActiveMQTextMessage")).String()
}

// SetText encodes text into the message content.
func (m *ActiveMQTextMessage) SetText(text string, compress bool) error {
	body := make([]byte, 4+len(text))
	binary.BigEndian.PutUint32(body, uint32(len(text)))
	copy(body[4:], text)
	return m.SetBody(body, compress)
}

// Text decodes the message content. A message without content has no text.
func (m *ActiveMQTextMessage) Text() (string, error) {
	body, err := m.Body()
	if err != nil {
		return "", err
	}
	if body == nil {
		return "", nil
	}
	if len(body) < 4 {
		return "", ErrTextBody
	}
	n := int64(int32(binary.BigEndian.Uint32(body)))
	if n < 0 || n != int64(len(body)-4) {
		return "", ErrTextBody
	}
	return string(body[4:]), nil
}
