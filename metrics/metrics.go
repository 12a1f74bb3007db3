// Package metrics exposes openwire client and pool statistics to Prometheus.
//
// The collector reads snapshots on every scrape, so it adds no cost to the
// send path.
package metrics

import (
	"net/http"

	"github.com/pior/openwire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is implemented by *openwire.Client.
type Source interface {
	Stats() openwire.ClientStats
	AllPoolStats() []openwire.BrokerPoolStats
}

// Collector is a prometheus.Collector over a Source.
type Collector struct {
	source Source

	operations       *prometheus.Desc
	errors           *prometheus.Desc
	brokerExceptions *prometheus.Desc

	poolConnections *prometheus.Desc
	poolCreated     *prometheus.Desc
	poolDestroyed   *prometheus.Desc
	poolAcquires    *prometheus.Desc
	poolWaits       *prometheus.Desc
	poolWaitSeconds *prometheus.Desc
	poolErrors      *prometheus.Desc

	breakerState *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for source. Metric names start with
// namespace, "openwire" when empty.
func NewCollector(source Source, namespace string) *Collector {
	if namespace == "" {
		namespace = "openwire"
	}
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}

	return &Collector{
		source: source,

		operations:       desc("client", "operations_total", "Successful client operations by kind.", "kind"),
		errors:           desc("client", "errors_total", "Failed client operations."),
		brokerExceptions: desc("client", "broker_exceptions_total", "Exception responses received from brokers."),

		poolConnections: desc("pool", "connections", "Pooled connections by state.", "broker", "state"),
		poolCreated:     desc("pool", "connections_created_total", "Connections dialed by the pool.", "broker"),
		poolDestroyed:   desc("pool", "connections_destroyed_total", "Connections closed by the pool.", "broker"),
		poolAcquires:    desc("pool", "acquires_total", "Connection acquire attempts.", "broker"),
		poolWaits:       desc("pool", "acquire_waits_total", "Acquires that waited for a release.", "broker"),
		poolWaitSeconds: desc("pool", "acquire_wait_seconds_total", "Time spent waiting for a connection.", "broker"),
		poolErrors:      desc("pool", "acquire_errors_total", "Failed acquires, including dial failures.", "broker"),

		breakerState: desc("circuit_breaker", "state", "Circuit breaker state (0=closed, 1=half-open, 2=open).", "broker"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.errors
	ch <- c.brokerExceptions
	ch <- c.poolConnections
	ch <- c.poolCreated
	ch <- c.poolDestroyed
	ch <- c.poolAcquires
	ch <- c.poolWaits
	ch <- c.poolWaitSeconds
	ch <- c.poolErrors
	ch <- c.breakerState
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	counter := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, v, labels...)
	}
	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}

	counter(c.operations, float64(s.Oneways), "oneway")
	counter(c.operations, float64(s.Requests), "request")
	counter(c.operations, float64(s.Messages), "message")
	counter(c.errors, float64(s.Errors))
	counter(c.brokerExceptions, float64(s.BrokerExceptions))

	for _, bp := range c.source.AllPoolStats() {
		p := bp.PoolStats
		gauge(c.poolConnections, float64(p.TotalConns), bp.Address, "total")
		gauge(c.poolConnections, float64(p.ActiveConns), bp.Address, "active")
		gauge(c.poolConnections, float64(p.IdleConns), bp.Address, "idle")
		counter(c.poolCreated, float64(p.CreatedConns), bp.Address)
		counter(c.poolDestroyed, float64(p.DestroyedConns), bp.Address)
		counter(c.poolAcquires, float64(p.AcquireCount), bp.Address)
		counter(c.poolWaits, float64(p.AcquireWaitCount), bp.Address)
		counter(c.poolWaitSeconds, float64(p.AcquireWaitTimeNs)/1e9, bp.Address)
		counter(c.poolErrors, float64(p.AcquireErrors), bp.Address)
		gauge(c.breakerState, float64(bp.BreakerState), bp.Address)
	}
}

// Register creates a collector for source and registers it with reg.
func Register(reg prometheus.Registerer, source Source, namespace string) (*Collector, error) {
	c := NewCollector(source, namespace)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler serves the metrics gathered by reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
