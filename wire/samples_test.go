package wire

import (
	"github.com/pior/openwire/commands"
)

func queue(name string) *commands.ActiveMQQueue {
	return &commands.ActiveMQQueue{ActiveMQDestination: commands.ActiveMQDestination{PhysicalName: name}}
}

func topic(name string) *commands.ActiveMQTopic {
	return &commands.ActiveMQTopic{ActiveMQDestination: commands.ActiveMQDestination{PhysicalName: name}}
}

func tempQueue(name string) *commands.ActiveMQTempQueue {
	d := &commands.ActiveMQTempQueue{}
	d.PhysicalName = name
	return d
}

func tempTopic(name string) *commands.ActiveMQTempTopic {
	d := &commands.ActiveMQTempTopic{}
	d.PhysicalName = name
	return d
}

func fillMessage(m *commands.Message, version int32) {
	conn := &commands.ConnectionID{Value: "ID:client-1"}
	producer := conn.NewSessionID(1).NewProducerID(2)

	m.ID = 42
	m.ResponseRequired = true
	m.ProducerID = producer
	m.Destination = queue("orders")
	m.TransactionID = &commands.LocalTransactionID{Value: 70000, ConnectionID: conn}
	m.OriginalDestination = topic("prices")
	m.MessageID = producer.NewMessageID(1 << 33)
	m.GroupID = "group"
	m.GroupSequence = -1
	m.CorrelationID = "corr-é"
	m.Persistent = true
	m.Expiration = -5
	m.Priority = 4
	m.ReplyTo = tempQueue("ID:reply")
	m.Timestamp = 1_700_000_000_000
	m.Type = "json"
	m.Content = []byte("payload")
	m.MarshalledProperties = []byte{}
	m.Structure = &commands.SessionInfo{SessionID: conn.NewSessionID(9)}
	m.TargetConsumerID = conn.NewSessionID(1).NewConsumerID(3)
	m.RedeliveryCounter = 2
	m.BrokerPath = []*commands.BrokerID{{Value: "broker-a"}, {Value: "broker-b"}}
	m.Arrival = 65535
	m.UserID = "alice"
	m.ReceivedByDFBridge = true
	if version >= 2 {
		m.Droppable = true
	}
	if version >= 3 {
		m.Cluster = []*commands.BrokerID{{Value: "broker-c"}}
		m.BrokerInTime = 65536
		m.BrokerOutTime = 1 << 40
	}
}

// samples returns one populated value of every concrete type, using only
// fields the given version carries.
func samples(version int32) []commands.DataStructure {
	conn := &commands.ConnectionID{Value: "ID:client-1"}
	session := conn.NewSessionID(1)
	producer := session.NewProducerID(2)

	msg := &commands.ActiveMQMessage{}
	fillMessage(&msg.Message, version)
	text := &commands.ActiveMQTextMessage{}
	fillMessage(&text.Message, version)
	_ = text.SetText("hello wire", true)

	info := commands.NewWireFormatInfo(version)
	info.Set(commands.PropCacheEnabled, true)
	info.Set(commands.PropCacheSize, int32(1024))
	info.Set(commands.PropMaxInactivityDuration, int64(30000))

	connInfo := &commands.ConnectionInfo{
		ConnectionID:          conn,
		ClientID:              "client",
		Password:              "secret",
		UserName:              "user",
		BrokerPath:            []*commands.BrokerID{{Value: "b"}},
		BrokerMasterConnector: true,
		Manageable:            true,
	}
	connInfo.ID = 1
	connInfo.ResponseRequired = true

	producerInfo := &commands.ProducerInfo{ProducerID: producer, Destination: topic("t")}
	if version >= 2 {
		connInfo.ClientMaster = true
		producerInfo.DispatchAsync = true
	}
	if version >= 3 {
		producerInfo.WindowSize = 1024
	}

	exc := &commands.ExceptionResponse{
		Response: commands.Response{CorrelationID: 12},
		Exception: &commands.BrokerError{
			ExceptionClass: "javax.jms.InvalidDestinationException",
			Message:        "no such queue",
			StackTrace: []commands.StackTraceElement{
				{ClassName: "org.apache.Broker", MethodName: "send", FileName: "Broker.java", LineNumber: 120},
			},
			Cause: &commands.BrokerError{ExceptionClass: "java.io.IOException", Message: "disk", StackTrace: []commands.StackTraceElement{}},
		},
	}

	partial := &commands.PartialCommand{Data: []byte{1, 2, 3}}
	partial.ID = 5
	last := &commands.LastPartialCommand{}
	last.ID = 6
	last.Data = []byte{}

	return []commands.DataStructure{
		info,
		connInfo,
		&commands.SessionInfo{SessionID: session},
		producerInfo,
		&commands.KeepAliveInfo{},
		&commands.ShutdownInfo{BaseCommand: commands.BaseCommand{ID: 3, ResponseRequired: true}},
		&commands.RemoveInfo{ObjectID: producer},
		msg,
		text,
		&commands.Response{BaseCommand: commands.BaseCommand{ID: 2}, CorrelationID: 1},
		exc,
		&commands.JournalTopicAck{
			Destination:       topic("durable"),
			MessageID:         producer.NewMessageID(3),
			MessageSequenceID: 77,
			SubscriptionName:  "sub",
			ClientID:          "client",
			TransactionID:     &commands.LocalTransactionID{Value: 1, ConnectionID: conn},
		},
		partial,
		last,
		queue("q"),
		topic("t"),
		tempQueue("tq"),
		tempTopic("tt"),
		producer.NewMessageID(9),
		&commands.LocalTransactionID{Value: 3, ConnectionID: conn},
		conn,
		session,
		session.NewConsumerID(4),
		producer,
		&commands.BrokerID{Value: "broker"},
	}
}

func typeName(ds commands.DataStructure) string {
	s := ds.String()
	for i, r := range s {
		if r == '{' {
			return s[:i]
		}
	}
	return s
}
