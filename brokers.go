package openwire

import (
	"github.com/pior/openwire/internal"
	"github.com/zeebo/xxh3"
)

// Brokers provides the broker addresses a Client spreads its traffic over.
type Brokers interface {
	List() []string
}

// StaticBrokers is a fixed list of broker addresses.
type StaticBrokers []string

func NewStaticBrokers(addresses ...string) StaticBrokers {
	return StaticBrokers(addresses)
}

func (b StaticBrokers) List() []string {
	return b
}

// SelectBrokerFunc picks the broker for a routing key, usually a
// destination name, among brokers.
type SelectBrokerFunc func(key string, brokers []string) (string, error)

// DefaultSelectBroker hashes key with xxh3 and picks a broker with jump
// consistent hashing, so a destination keeps its broker while the list is
// stable and few destinations move when it changes.
func DefaultSelectBroker(key string, brokers []string) (string, error) {
	switch len(brokers) {
	case 0:
		return "", ErrNoBrokers
	case 1:
		return brokers[0], nil
	}
	return brokers[internal.JumpHash(xxh3.HashString(key), len(brokers))], nil
}
