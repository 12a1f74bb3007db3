package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() *ActiveMQTextMessage {
	conn := &ConnectionID{Value: "ID:host-1"}
	producer := conn.NewSessionID(2).NewProducerID(3)
	m := &ActiveMQTextMessage{}
	m.ID = 7
	m.ResponseRequired = true
	m.ProducerID = producer
	m.Destination = &ActiveMQQueue{ActiveMQDestination{PhysicalName: "orders"}}
	m.TransactionID = &LocalTransactionID{Value: 9, ConnectionID: conn}
	m.MessageID = producer.NewMessageID(11)
	m.ReplyTo = &ActiveMQTempTopic{ActiveMQTempDestination{ActiveMQDestination{PhysicalName: "reply"}}}
	m.BrokerPath = []*BrokerID{{Value: "b1"}, {Value: "b2"}}
	m.Structure = &SessionInfo{SessionID: conn.NewSessionID(2)}
	m.MarshalledProperties = []byte{1, 2, 3}
	return m
}

func TestClone_IsDeepAndEqual(t *testing.T) {
	orig := sampleMessage()
	cp := orig.Clone().(*ActiveMQTextMessage)

	require.True(t, orig.Equals(cp))
	require.True(t, cp.Equals(orig))

	cp.ProducerID.Value = 99
	cp.BrokerPath[0].Value = "changed"
	cp.MarshalledProperties[0] = 42
	cp.Destination.BaseDestination().PhysicalName = "other"

	assert.Equal(t, int64(3), orig.ProducerID.Value)
	assert.Equal(t, "b1", orig.BrokerPath[0].Value)
	assert.Equal(t, byte(1), orig.MarshalledProperties[0])
	assert.Equal(t, "orders", orig.Destination.BaseDestination().PhysicalName)
	assert.False(t, orig.Equals(cp))
}

func TestEquals_DifferentTypes(t *testing.T) {
	q := &ActiveMQQueue{ActiveMQDestination{PhysicalName: "x"}}
	tp := &ActiveMQTopic{ActiveMQDestination{PhysicalName: "x"}}
	assert.False(t, q.Equals(tp))

	msg := &ActiveMQMessage{}
	text := &ActiveMQTextMessage{}
	assert.False(t, msg.Equals(text))

	partial := &PartialCommand{}
	last := &LastPartialCommand{}
	assert.False(t, partial.Equals(last))
	assert.False(t, last.Equals(partial))
}

func TestIsNilAndEqual(t *testing.T) {
	var typed *ProducerID
	var iface DataStructure = typed

	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(iface))
	assert.False(t, IsNil(&ProducerID{}))

	assert.True(t, Equal(nil, iface))
	assert.False(t, Equal(nil, &ProducerID{}))
	assert.True(t, Equal(&BrokerID{Value: "a"}, &BrokerID{Value: "a"}))
}

func TestEqualBytes_NilVersusEmpty(t *testing.T) {
	a := &PartialCommand{Data: nil}
	b := &PartialCommand{Data: []byte{}}
	assert.False(t, a.Equals(b))
}

func TestPartialCommand_NeverRequiresResponse(t *testing.T) {
	for _, cmd := range []Command{&PartialCommand{}, &LastPartialCommand{}} {
		cmd.SetResponseRequired(true)
		assert.False(t, cmd.IsResponseRequired())
	}

	a := &PartialCommand{Data: []byte{1}}
	a.ID = 4
	b := a.Clone().(*PartialCommand)
	b.ResponseRequired = true
	assert.True(t, a.Equals(b))

	b.ID = 5
	assert.False(t, a.Equals(b))
}

func TestCommandPredicates(t *testing.T) {
	tests := []struct {
		cmd       Command
		response  bool
		message   bool
		wireInfo  bool
		keepAlive bool
		shutdown  bool
	}{
		{&Response{}, true, false, false, false, false},
		{&ExceptionResponse{}, true, false, false, false, false},
		{&ActiveMQMessage{}, false, true, false, false, false},
		{&ActiveMQTextMessage{}, false, true, false, false, false},
		{NewWireFormatInfo(2), false, false, true, false, false},
		{&KeepAliveInfo{}, false, false, false, true, false},
		{&ShutdownInfo{}, false, false, false, false, true},
		{&ConnectionInfo{}, false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			assert.Equal(t, tt.response, tt.cmd.IsResponse())
			assert.Equal(t, tt.message, tt.cmd.IsMessage())
			assert.Equal(t, tt.wireInfo, tt.cmd.IsWireFormatInfo())
			assert.Equal(t, tt.keepAlive, tt.cmd.IsKeepAliveInfo())
			assert.Equal(t, tt.shutdown, tt.cmd.IsShutdownInfo())
		})
	}
}

func TestResponseCorrelation(t *testing.T) {
	var r ResponseCommand = &ExceptionResponse{Response: Response{CorrelationID: 5}}
	assert.Equal(t, int32(5), r.Correlation())
}

func TestString(t *testing.T) {
	s := &ShutdownInfo{BaseCommand{ID: 4, ResponseRequired: true}}
	assert.Equal(t, "ShutdownInfo{commandId=4, responseRequired=true}", s.String())

	info := &SessionInfo{}
	assert.Equal(t, "SessionInfo{commandId=0, responseRequired=false, sessionId=nil}", info.String())

	m := sampleMessage()
	out := m.String()
	assert.True(t, strings.HasPrefix(out, "ActiveMQTextMessage{"))
	assert.Contains(t, out, `physicalName="orders"`)
}

func TestExceptionResponse_CloneAndEquals(t *testing.T) {
	orig := &ExceptionResponse{
		Response: Response{CorrelationID: 3},
		Exception: &BrokerError{
			ExceptionClass: "javax.jms.JMSException",
			Message:        "boom",
			StackTrace:     []StackTraceElement{{ClassName: "A", MethodName: "b", FileName: "A.java", LineNumber: 10}},
			Cause:          &BrokerError{ExceptionClass: "java.io.IOException", Message: "eof"},
		},
	}
	cp := orig.Clone().(*ExceptionResponse)
	require.True(t, orig.Equals(cp))

	cp.Exception.Cause.Message = "other"
	assert.False(t, orig.Equals(cp))
	assert.Equal(t, "javax.jms.JMSException: boom", orig.Exception.Error())
}

func TestNewDestination(t *testing.T) {
	tests := []struct {
		uri       string
		queue     bool
		temporary bool
		name      string
	}{
		{"queue://orders", true, false, "orders"},
		{"topic://prices", false, false, "prices"},
		{"temp-queue://ID:1", true, true, "ID:1"},
		{"temp-topic://ID:2", false, true, "ID:2"},
		{"plain", true, false, "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			d, err := NewDestination(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.queue, d.IsQueue())
			assert.Equal(t, !tt.queue, d.IsTopic())
			assert.Equal(t, tt.temporary, d.IsTemporary())
			assert.Equal(t, tt.name, d.BaseDestination().PhysicalName)
			if tt.uri != "plain" {
				assert.Equal(t, tt.uri, QualifiedName(d))
			}
		})
	}

	_, err := NewDestination("queue://")
	assert.Error(t, err)
	_, err = NewDestination("amqp://x")
	assert.Error(t, err)
}

func TestTextMessage_Body(t *testing.T) {
	for _, compress := range []bool{false, true} {
		m := &ActiveMQTextMessage{}
		require.NoError(t, m.SetText(strings.Repeat("hello ", 100), compress))
		assert.Equal(t, compress, m.Compressed)

		text, err := m.Text()
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("hello ", 100), text)
	}

	m := &ActiveMQTextMessage{}
	require.NoError(t, m.SetText(strings.Repeat("a", 1000), true))
	assert.Less(t, len(m.Content), 100)

	m.Content = []byte{0, 0}
	m.Compressed = false
	_, err := m.Text()
	assert.ErrorIs(t, err, ErrTextBody)
}

func TestWireFormatInfo(t *testing.T) {
	info := NewWireFormatInfo(2)
	assert.True(t, info.Valid())

	info.Set(PropCacheEnabled, true)
	info.Set(PropCacheSize, int32(1024))
	info.Set(PropMaxInactivityDuration, int64(30000))

	v, ok := info.Bool(PropCacheEnabled)
	assert.True(t, ok)
	assert.True(t, v)

	n, ok := info.Int(PropCacheSize)
	assert.True(t, ok)
	assert.Equal(t, int64(1024), n)

	_, ok = info.Int(PropCacheEnabled)
	assert.False(t, ok)

	cp := info.Clone().(*WireFormatInfo)
	assert.True(t, info.Equals(cp))
	cp.Set(PropCacheSize, int32(1))
	assert.False(t, info.Equals(cp))
}

func TestNewConnectionID(t *testing.T) {
	a := NewConnectionID()
	b := NewConnectionID()
	assert.True(t, strings.HasPrefix(a.Value, "ID:"))
	assert.NotEqual(t, a.Value, b.Value)

	msgID := a.NewSessionID(1).NewProducerID(2).NewMessageID(3)
	assert.Equal(t, a.Value+":1:2:3", msgID.Text())
}
