package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/pior/openwire"
	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/metrics"
	"github.com/pior/openwire/mock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	stats openwire.ClientStats
	pools []openwire.BrokerPoolStats
}

func (f *fakeSource) Stats() openwire.ClientStats                { return f.stats }
func (f *fakeSource) AllPoolStats() []openwire.BrokerPoolStats { return f.pools }

// gather returns every sample as "name{label=value,...}" -> value.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	samples := map[string]float64{}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			key := family.GetName() + "{"
			for i, l := range m.GetLabel() {
				if i > 0 {
					key += ","
				}
				key += l.GetName() + "=" + l.GetValue()
			}
			key += "}"

			switch {
			case m.GetCounter() != nil:
				samples[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				samples[key] = m.GetGauge().GetValue()
			}
		}
	}
	return samples
}

func TestCollector(t *testing.T) {
	source := &fakeSource{
		stats: openwire.ClientStats{Oneways: 1, Requests: 2, Messages: 3, BrokerExceptions: 4, Errors: 5},
		pools: []openwire.BrokerPoolStats{{
			Address: "tcp://a:61616",
			PoolStats: openwire.PoolStats{
				AcquireCount:      10,
				AcquireWaitCount:  2,
				CreatedConns:      3,
				DestroyedConns:    1,
				AcquireErrors:     1,
				AcquireWaitTimeNs: 1_500_000_000,
				TotalConns:        2,
				IdleConns:         1,
				ActiveConns:       1,
			},
			BreakerState: gobreaker.StateOpen,
		}},
	}

	reg := prometheus.NewRegistry()
	_, err := metrics.Register(reg, source, "")
	require.NoError(t, err)

	samples := gather(t, reg)
	assert.Equal(t, 1.0, samples["openwire_client_operations_total{kind=oneway}"])
	assert.Equal(t, 2.0, samples["openwire_client_operations_total{kind=request}"])
	assert.Equal(t, 3.0, samples["openwire_client_operations_total{kind=message}"])
	assert.Equal(t, 4.0, samples["openwire_client_broker_exceptions_total{}"])
	assert.Equal(t, 5.0, samples["openwire_client_errors_total{}"])

	assert.Equal(t, 2.0, samples["openwire_pool_connections{broker=tcp://a:61616,state=total}"])
	assert.Equal(t, 1.0, samples["openwire_pool_connections{broker=tcp://a:61616,state=idle}"])
	assert.Equal(t, 3.0, samples["openwire_pool_connections_created_total{broker=tcp://a:61616}"])
	assert.Equal(t, 10.0, samples["openwire_pool_acquires_total{broker=tcp://a:61616}"])
	assert.Equal(t, 1.5, samples["openwire_pool_acquire_wait_seconds_total{broker=tcp://a:61616}"])
	assert.Equal(t, 2.0, samples["openwire_circuit_breaker_state{broker=tcp://a:61616}"])
}

func TestCollectorNamespaceAndDuplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.Register(reg, &fakeSource{}, "orders")
	require.NoError(t, err)

	_, err = metrics.Register(reg, &fakeSource{}, "orders")
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)

	samples := gather(t, reg)
	assert.Contains(t, samples, "orders_client_errors_total{}")
}

func TestHandlerWithClient(t *testing.T) {
	dial := func(ctx context.Context, address string, cfg openwire.Config) (*openwire.Conn, error) {
		conn := openwire.NewConn(mock.New(mock.Acknowledge), address)
		if err := conn.Handshake(ctx, "", "", ""); err != nil {
			return nil, err
		}
		return conn, nil
	}
	client, err := openwire.NewClient(openwire.NewStaticBrokers("tcp://a:61616"), openwire.ClientConfig{Dial: dial})
	require.NoError(t, err)
	defer client.Close()

	dest, err := commands.NewDestination("queue://orders")
	require.NoError(t, err)
	require.NoError(t, client.Send(context.Background(), dest, &commands.ActiveMQMessage{}))

	reg := prometheus.NewRegistry()
	_, err = metrics.Register(reg, client, "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `openwire_client_operations_total{kind="message"} 1`)
	assert.Contains(t, string(body), `openwire_pool_connections{broker="tcp://a:61616",state="idle"} 1`)
}
