package commands

import (
	"fmt"
	"strings"
)

// Destination is implemented by queues and topics, temporary or not.
type Destination interface {
	DataStructure
	BaseDestination() *ActiveMQDestination
	IsQueue() bool
	IsTopic() bool
	IsTemporary() bool
}

const (
	queuePrefix     = "queue://"
	topicPrefix     = "topic://"
	tempQueuePrefix = "temp-queue://"
	tempTopicPrefix = "temp-topic://"
)

// NewDestination parses a destination URI such as "queue://orders" or
// "temp-topic://ID:abc". A bare name is treated as a queue.
func NewDestination(uri string) (Destination, error) {
	switch {
	case strings.HasPrefix(uri, tempQueuePrefix):
		return nonEmpty(&ActiveMQTempQueue{ActiveMQTempDestination{ActiveMQDestination{strings.TrimPrefix(uri, tempQueuePrefix)}}})
	case strings.HasPrefix(uri, tempTopicPrefix):
		return nonEmpty(&ActiveMQTempTopic{ActiveMQTempDestination{ActiveMQDestination{strings.TrimPrefix(uri, tempTopicPrefix)}}})
	case strings.HasPrefix(uri, queuePrefix):
		return nonEmpty(&ActiveMQQueue{ActiveMQDestination{strings.TrimPrefix(uri, queuePrefix)}})
	case strings.HasPrefix(uri, topicPrefix):
		return nonEmpty(&ActiveMQTopic{ActiveMQDestination{strings.TrimPrefix(uri, topicPrefix)}})
	case strings.Contains(uri, "://"):
		return nil, fmt.Errorf("commands: unknown destination scheme in %q", uri)
	default:
		return nonEmpty(&ActiveMQQueue{ActiveMQDestination{uri}})
	}
}

func nonEmpty(d Destination) (Destination, error) {
	if d.BaseDestination().PhysicalName == "" {
		return nil, fmt.Errorf("commands: empty destination name")
	}
	return d, nil
}

// QualifiedName renders a destination back into its URI form.
func QualifiedName(d Destination) string {
	if IsNil(d) {
		return ""
	}
	name := d.BaseDestination().PhysicalName
	switch {
	case d.IsQueue() && d.IsTemporary():
		return tempQueuePrefix + name
	case d.IsTopic() && d.IsTemporary():
		return tempTopicPrefix + name
	case d.IsTopic():
		return topicPrefix + name
	default:
		return queuePrefix + name
	}
}

// ActiveMQDestination holds the fields shared by all destinations.
type ActiveMQDestination struct {
	PhysicalName string
}

func (d *ActiveMQDestination) BaseDestination() *ActiveMQDestination { return d }

// ActiveMQTempDestination is the common layer of temporary destinations.
type ActiveMQTempDestination struct {
	ActiveMQDestination
}

func (d *ActiveMQTempDestination) IsTemporary() bool { return true }

type ActiveMQQueue struct {
	ActiveMQDestination
}

func (d *ActiveMQQueue) DataStructureType() byte { return TypeActiveMQQueue }
func (d *ActiveMQQueue) IsQueue() bool           { return true }
func (d *ActiveMQQueue) IsTopic() bool           { return false }
func (d *ActiveMQQueue) IsTemporary() bool       { return false }
func (d *ActiveMQQueue) Clone() DataStructure    { cp := *d; return &cp }
func (d *ActiveMQQueue) String() string          { return dumpDestination("ActiveMQQueue", d) }

func (d *ActiveMQQueue) Equals(other DataStructure) bool {
	o, ok := other.(*ActiveMQQueue)
	return ok && o != nil && *d == *o
}

type ActiveMQTopic struct {
	ActiveMQDestination
}

func (d *ActiveMQTopic) DataStructureType() byte { return TypeActiveMQTopic }
func (d *ActiveMQTopic) IsQueue() bool           { return false }
func (d *ActiveMQTopic) IsTopic() bool           { return true }
func (d *ActiveMQTopic) IsTemporary() bool       { return false }
func (d *ActiveMQTopic) Clone() DataStructure    { cp := *d; return &cp }
func (d *ActiveMQTopic) String() string          { return dumpDestination("ActiveMQTopic", d) }

func (d *ActiveMQTopic) Equals(other DataStructure) bool {
	o, ok := other.(*ActiveMQTopic)
	return ok && o != nil && *d == *o
}

type ActiveMQTempQueue struct {
	ActiveMQTempDestination
}

func (d *ActiveMQTempQueue) DataStructureType() byte { return TypeActiveMQTempQueue }
func (d *ActiveMQTempQueue) IsQueue() bool           { return true }
func (d *ActiveMQTempQueue) IsTopic() bool           { return false }
func (d *ActiveMQTempQueue) Clone() DataStructure    { cp := *d; return &cp }
func (d *ActiveMQTempQueue) String() string          { return dumpDestination("ActiveMQTempQueue", d) }

func (d *ActiveMQTempQueue) Equals(other DataStructure) bool {
	o, ok := other.(*ActiveMQTempQueue)
	return ok && o != nil && *d == *o
}

type ActiveMQTempTopic struct {
	ActiveMQTempDestination
}

func (d *ActiveMQTempTopic) DataStructureType() byte { return TypeActiveMQTempTopic }
func (d *ActiveMQTempTopic) IsQueue() bool           { return false }
func (d *ActiveMQTempTopic) IsTopic() bool           { return true }
func (d *ActiveMQTempTopic) Clone() DataStructure    { cp := *d; return &cp }
func (d *ActiveMQTempTopic) String() string          { return dumpDestination("ActiveMQTempTopic", d) }

func (d *ActiveMQTempTopic) Equals(other DataStructure) bool {
	o, ok := other.(*ActiveMQTempTopic)
	return ok && o != nil && *d == *o
}

func dumpDestination(name string, d Destination) string {
	return dump(name).add("physicalName", d.BaseDestination().PhysicalName).String()
}
