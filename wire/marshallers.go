package wire

import "github.com/pior/openwire/commands"

// Field lists in wire order. Each layer visits its parent first.

type baseCarrier interface{ Base() *commands.BaseCommand }
type responseCarrier interface{ BaseResponse() *commands.Response }
type partialCarrier interface{ BasePartial() *commands.PartialCommand }
type messageCarrier interface{ BaseMessage() *commands.Message }
type destinationCarrier interface {
	BaseDestination() *commands.ActiveMQDestination
}

func dataStructureFields(fieldCodec, int32, commands.DataStructure) {}

func baseCommandFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[baseCarrier](f, ds)
	if !ok {
		return
	}
	b := c.Base()
	f.Int(&b.ID)
	f.Bool(&b.ResponseRequired)
}

func keepAliveInfoFields(f fieldCodec, v int32, ds commands.DataStructure) {
	baseCommandFields(f, v, ds)
}

func shutdownInfoFields(f fieldCodec, v int32, ds commands.DataStructure) {
	baseCommandFields(f, v, ds)
}

func removeInfoFields(f fieldCodec, v int32, ds commands.DataStructure) {
	baseCommandFields(f, v, ds)
	c, ok := as[*commands.RemoveInfo](f, ds)
	if !ok {
		return
	}
	cached(f, &c.ObjectID)
}

func responseFields(f fieldCodec, v int32, ds commands.DataStructure) {
	baseCommandFields(f, v, ds)
	c, ok := as[responseCarrier](f, ds)
	if !ok {
		return
	}
	f.Int(&c.BaseResponse().CorrelationID)
}

func exceptionResponseFields(f fieldCodec, v int32, ds commands.DataStructure) {
	responseFields(f, v, ds)
	c, ok := as[*commands.ExceptionResponse](f, ds)
	if !ok {
		return
	}
	f.Throwable(&c.Exception)
}

// partialCommandFields skips the responseRequired flag of BaseCommand.
func partialCommandFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[partialCarrier](f, ds)
	if !ok {
		return
	}
	p := c.BasePartial()
	f.Int(&p.ID)
	f.Bytes(&p.Data)
}

func lastPartialCommandFields(f fieldCodec, v int32, ds commands.DataStructure) {
	partialCommandFields(f, v, ds)
}

func wireFormatInfoFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[*commands.WireFormatInfo](f, ds)
	if !ok {
		return
	}
	f.ConstBytes(&c.Magic, len(commands.Magic))
	f.Int(&c.Version)

	var props []byte
	if !f.decoding() {
		var err error
		if props, err = MarshalPrimitiveMap(c.Properties); err != nil {
			f.fail(err)
			return
		}
	}
	f.Bytes(&props)
	if f.decoding() {
		m, err := UnmarshalPrimitiveMap(props)
		if err != nil {
			f.fail(err)
			return
		}
		c.Properties = m
	}
}

func connectionInfoFields(f fieldCodec, v int32, ds commands.DataStructure) {
	baseCommandFields(f, v, ds)
	c, ok := as[*commands.ConnectionInfo](f, ds)
	if !ok {
		return
	}
	cached(f, &c.ConnectionID)
	f.String(&c.ClientID)
	f.String(&c.Password)
	f.String(&c.UserName)
	array(f, &c.BrokerPath)
	f.Bool(&c.BrokerMasterConnector)
	f.Bool(&c.Manageable)
	if v >= 2 {
		f.Bool(&c.ClientMaster)
	}
}

func sessionInfoFields(f fieldCodec, v int32, ds commands.DataStructure) {
	baseCommandFields(f, v, ds)
	c, ok := as[*commands.SessionInfo](f, ds)
	if !ok {
		return
	}
	cached(f, &c.SessionID)
}

func producerInfoFields(f fieldCodec, v int32, ds commands.DataStructure) {
	baseCommandFields(f, v, ds)
	c, ok := as[*commands.ProducerInfo](f, ds)
	if !ok {
		return
	}
	cached(f, &c.ProducerID)
	cached(f, &c.Destination)
	array(f, &c.BrokerPath)
	if v >= 2 {
		f.Bool(&c.DispatchAsync)
	}
	if v >= 3 {
		f.Int(&c.WindowSize)
	}
}

func messageFields(f fieldCodec, v int32, ds commands.DataStructure) {
	baseCommandFields(f, v, ds)
	c, ok := as[messageCarrier](f, ds)
	if !ok {
		return
	}
	m := c.BaseMessage()
	cached(f, &m.ProducerID)
	cached(f, &m.Destination)
	cached(f, &m.TransactionID)
	cached(f, &m.OriginalDestination)
	nested(f, &m.MessageID)
	cached(f, &m.OriginalTransactionID)
	f.String(&m.GroupID)
	f.Int(&m.GroupSequence)
	f.String(&m.CorrelationID)
	f.Bool(&m.Persistent)
	f.Long(&m.Expiration)
	f.Byte(&m.Priority)
	cached(f, &m.ReplyTo)
	f.Long(&m.Timestamp)
	f.String(&m.Type)
	f.Bytes(&m.Content)
	f.Bytes(&m.MarshalledProperties)
	nested(f, &m.Structure)
	cached(f, &m.TargetConsumerID)
	f.Bool(&m.Compressed)
	f.Int(&m.RedeliveryCounter)
	array(f, &m.BrokerPath)
	f.Long(&m.Arrival)
	f.String(&m.UserID)
	f.Bool(&m.ReceivedByDFBridge)
	if v >= 2 {
		f.Bool(&m.Droppable)
	}
	if v >= 3 {
		array(f, &m.Cluster)
		f.Long(&m.BrokerInTime)
		f.Long(&m.BrokerOutTime)
	}
}

func activeMQMessageFields(f fieldCodec, v int32, ds commands.DataStructure) {
	messageFields(f, v, ds)
}

func activeMQTextMessageFields(f fieldCodec, v int32, ds commands.DataStructure) {
	messageFields(f, v, ds)
}

func journalTopicAckFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[*commands.JournalTopicAck](f, ds)
	if !ok {
		return
	}
	nested(f, &c.Destination)
	nested(f, &c.MessageID)
	f.Long(&c.MessageSequenceID)
	f.String(&c.SubscriptionName)
	f.String(&c.ClientID)
	nested(f, &c.TransactionID)
}

func destinationFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[destinationCarrier](f, ds)
	if !ok {
		return
	}
	f.String(&c.BaseDestination().PhysicalName)
}

func tempDestinationFields(f fieldCodec, v int32, ds commands.DataStructure) {
	destinationFields(f, v, ds)
}

func transactionIDFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
}

func localTransactionIDFields(f fieldCodec, v int32, ds commands.DataStructure) {
	transactionIDFields(f, v, ds)
	c, ok := as[*commands.LocalTransactionID](f, ds)
	if !ok {
		return
	}
	f.Long(&c.Value)
	cached(f, &c.ConnectionID)
}

func messageIDFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[*commands.MessageID](f, ds)
	if !ok {
		return
	}
	cached(f, &c.ProducerID)
	f.Long(&c.ProducerSequenceID)
	f.Long(&c.BrokerSequenceID)
}

func connectionIDFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[*commands.ConnectionID](f, ds)
	if !ok {
		return
	}
	f.String(&c.Value)
}

func sessionIDFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[*commands.SessionID](f, ds)
	if !ok {
		return
	}
	f.String(&c.ConnectionID)
	f.Long(&c.Value)
}

func producerIDFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[*commands.ProducerID](f, ds)
	if !ok {
		return
	}
	f.String(&c.ConnectionID)
	f.Long(&c.Value)
	f.Long(&c.SessionID)
}

func consumerIDFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[*commands.ConsumerID](f, ds)
	if !ok {
		return
	}
	f.String(&c.ConnectionID)
	f.Long(&c.SessionID)
	f.Long(&c.Value)
}

func brokerIDFields(f fieldCodec, v int32, ds commands.DataStructure) {
	dataStructureFields(f, v, ds)
	c, ok := as[*commands.BrokerID](f, ds)
	if !ok {
		return
	}
	f.String(&c.Value)
}
