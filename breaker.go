package openwire

import (
	"context"
	"errors"
	"time"

	"github.com/pior/openwire/commands"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the traffic to one broker.
type CircuitBreaker = gobreaker.CircuitBreaker[commands.ResponseCommand]

// NewCircuitBreakerConfig returns a function that creates a circuit breaker
// per broker address. A breaker trips after at least 3 requests with 60%
// failures in the interval. Broker exceptions and cancellations do not count
// as failures.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *CircuitBreaker {
	return func(address string) *CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        address,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: breakerSuccess,
		}
		return gobreaker.NewCircuitBreaker[commands.ResponseCommand](settings)
	}
}

func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || isBrokerError(err)
}

// BreakerTransport rejects sends with gobreaker.ErrOpenState while its
// circuit breaker is open.
type BreakerTransport struct {
	Transport
	cb *CircuitBreaker
}

func NewBreakerTransport(next Transport, cb *CircuitBreaker) *BreakerTransport {
	return &BreakerTransport{Transport: next, cb: cb}
}

func (t *BreakerTransport) Oneway(ctx context.Context, cmd commands.Command) error {
	_, err := t.cb.Execute(func() (commands.ResponseCommand, error) {
		return nil, t.Transport.Oneway(ctx, cmd)
	})
	return err
}

func (t *BreakerTransport) Request(ctx context.Context, cmd commands.Command) (commands.ResponseCommand, error) {
	return t.RequestTimeout(ctx, cmd, 0)
}

func (t *BreakerTransport) RequestTimeout(ctx context.Context, cmd commands.Command, timeout time.Duration) (commands.ResponseCommand, error) {
	return t.cb.Execute(func() (commands.ResponseCommand, error) {
		return t.Transport.RequestTimeout(ctx, cmd, timeout)
	})
}

// State returns the breaker state.
func (t *BreakerTransport) State() gobreaker.State {
	return t.cb.State()
}
