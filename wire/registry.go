package wire

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pior/openwire/commands"
)

type typeSpec struct {
	id     byte
	name   string
	create func() commands.DataStructure
	fields fieldFunc
}

// catalogue lists every concrete type. Shared layers are listed separately.
var catalogue = []typeSpec{
	{commands.TypeWireFormatInfo, "WireFormatInfo", func() commands.DataStructure { return &commands.WireFormatInfo{} }, wireFormatInfoFields},
	{commands.TypeConnectionInfo, "ConnectionInfo", func() commands.DataStructure { return &commands.ConnectionInfo{} }, connectionInfoFields},
	{commands.TypeSessionInfo, "SessionInfo", func() commands.DataStructure { return &commands.SessionInfo{} }, sessionInfoFields},
	{commands.TypeProducerInfo, "ProducerInfo", func() commands.DataStructure { return &commands.ProducerInfo{} }, producerInfoFields},
	{commands.TypeKeepAliveInfo, "KeepAliveInfo", func() commands.DataStructure { return &commands.KeepAliveInfo{} }, keepAliveInfoFields},
	{commands.TypeShutdownInfo, "ShutdownInfo", func() commands.DataStructure { return &commands.ShutdownInfo{} }, shutdownInfoFields},
	{commands.TypeRemoveInfo, "RemoveInfo", func() commands.DataStructure { return &commands.RemoveInfo{} }, removeInfoFields},
	{commands.TypeActiveMQMessage, "ActiveMQMessage", func() commands.DataStructure { return &commands.ActiveMQMessage{} }, activeMQMessageFields},
	{commands.TypeActiveMQTextMessage, "ActiveMQTextMessage", func() commands.DataStructure { return &commands.ActiveMQTextMessage{} }, activeMQTextMessageFields},
	{commands.TypeResponse, "Response", func() commands.DataStructure { return &commands.Response{} }, responseFields},
	{commands.TypeExceptionResponse, "ExceptionResponse", func() commands.DataStructure { return &commands.ExceptionResponse{} }, exceptionResponseFields},
	{commands.TypeJournalTopicAck, "JournalTopicAck", func() commands.DataStructure { return &commands.JournalTopicAck{} }, journalTopicAckFields},
	{commands.TypePartialCommand, "PartialCommand", func() commands.DataStructure { return &commands.PartialCommand{} }, partialCommandFields},
	{commands.TypeLastPartialCommand, "LastPartialCommand", func() commands.DataStructure { return &commands.LastPartialCommand{} }, lastPartialCommandFields},
	{commands.TypeActiveMQQueue, "ActiveMQQueue", func() commands.DataStructure { return &commands.ActiveMQQueue{} }, destinationFields},
	{commands.TypeActiveMQTopic, "ActiveMQTopic", func() commands.DataStructure { return &commands.ActiveMQTopic{} }, destinationFields},
	{commands.TypeActiveMQTempQueue, "ActiveMQTempQueue", func() commands.DataStructure { return &commands.ActiveMQTempQueue{} }, tempDestinationFields},
	{commands.TypeActiveMQTempTopic, "ActiveMQTempTopic", func() commands.DataStructure { return &commands.ActiveMQTempTopic{} }, tempDestinationFields},
	{commands.TypeMessageID, "MessageId", func() commands.DataStructure { return &commands.MessageID{} }, messageIDFields},
	{commands.TypeLocalTransactionID, "LocalTransactionId", func() commands.DataStructure { return &commands.LocalTransactionID{} }, localTransactionIDFields},
	{commands.TypeConnectionID, "ConnectionId", func() commands.DataStructure { return &commands.ConnectionID{} }, connectionIDFields},
	{commands.TypeSessionID, "SessionId", func() commands.DataStructure { return &commands.SessionID{} }, sessionIDFields},
	{commands.TypeConsumerID, "ConsumerId", func() commands.DataStructure { return &commands.ConsumerID{} }, consumerIDFields},
	{commands.TypeProducerID, "ProducerId", func() commands.DataStructure { return &commands.ProducerID{} }, producerIDFields},
	{commands.TypeBrokerID, "BrokerId", func() commands.DataStructure { return &commands.BrokerID{} }, brokerIDFields},
}

var sharedLayers = []typeSpec{
	{commands.TypeNull, "BaseDataStructure", nil, dataStructureFields},
	{commands.TypeNull, "BaseCommand", nil, baseCommandFields},
	{commands.TypeNull, "Message", nil, messageFields},
	{commands.TypeNull, "ActiveMQDestination", nil, destinationFields},
	{commands.TypeNull, "ActiveMQTempDestination", nil, tempDestinationFields},
	{commands.TypeNull, "TransactionId", nil, transactionIDFields},
}

type versionTable struct {
	version int32
	byType  [256]Marshaller
	shared  map[string]Marshaller
}

// Registry holds one marshaller per (protocol version, type id).
type Registry struct {
	tables map[int32]*versionTable
}

// NewRegistry builds the marshaller tables of every supported version.
func NewRegistry() *Registry {
	r := &Registry{tables: make(map[int32]*versionTable)}
	for v := MinVersion; v <= MaxVersion; v++ {
		t := &versionTable{version: v, shared: make(map[string]Marshaller)}
		for _, spec := range catalogue {
			if t.byType[spec.id] != nil {
				panic(fmt.Sprintf("wire: duplicate type id %d", spec.id))
			}
			t.byType[spec.id] = &typeMarshaller{id: spec.id, name: spec.name, version: v, create: spec.create, fields: spec.fields}
		}
		for _, spec := range sharedLayers {
			t.shared[spec.name] = &typeMarshaller{id: spec.id, name: spec.name, version: v, fields: spec.fields}
		}
		r.tables[v] = t
	}
	return r
}

var defaultRegistry = sync.OnceValue(NewRegistry)

// DefaultRegistry returns a process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Lookup returns the marshaller of a type id for a version.
func (r *Registry) Lookup(version int32, typeID byte) (Marshaller, bool) {
	t, ok := r.tables[version]
	if !ok || t.byType[typeID] == nil {
		return nil, false
	}
	return t.byType[typeID], true
}

// Shared returns the marshaller of a shared layer such as "Message". Shared
// layers cannot be instantiated.
func (r *Registry) Shared(version int32, name string) (Marshaller, bool) {
	t, ok := r.tables[version]
	if !ok {
		return nil, false
	}
	m, ok := t.shared[name]
	return m, ok
}

// Versions returns the supported versions in ascending order.
func (r *Registry) Versions() []int32 {
	var out []int32
	for v := range r.tables {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// TypeIDs returns the registered type ids in ascending order.
func (r *Registry) TypeIDs(version int32) []byte {
	t, ok := r.tables[version]
	if !ok {
		return nil
	}
	var ids []byte
	for id, m := range t.byType {
		if m != nil {
			ids = append(ids, byte(id))
		}
	}
	return ids
}

func (r *Registry) table(version int32) (*versionTable, error) {
	t, ok := r.tables[version]
	if !ok {
		return nil, fmt.Errorf("wire: unsupported protocol version %d", version)
	}
	return t, nil
}
