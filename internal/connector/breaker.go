package connector

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus" // Logging library
	"github.com/sony/gobreaker"  // Circuit breaker
)

// breakerConnector wraps a backend with a circuit breaker so a flapping or
// dead backend fails fast instead of eating the request timeout every time.
// An open circuit surfaces as ConnectorError(unreachable).
type breakerConnector struct {
	inner Connector
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps a Connector with circuit-breaker protection. The name
// tags the breaker in logs, typically the account id.
func WithBreaker(name string, inner Connector) Connector {
	settings := gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip after 5 consecutive failures
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"connector": name,          // Breaker name
				"from":      from.String(), // Previous state
				"to":        to.String(),   // New state
			}).Warn("Connector circuit breaker state changed")
		},
	}
	return &breakerConnector{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// execute runs fn through the breaker and normalizes breaker errors
func (b *breakerConnector) execute(fn func() (any, error)) (any, error) {
	out, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, NewError(ReasonUnreachable, "payment backend temporarily unavailable")
		}
		return nil, err
	}
	return out, nil
}

func (b *breakerConnector) GetBalance(ctx context.Context) (int64, error) {
	out, err := b.execute(func() (any, error) { return b.inner.GetBalance(ctx) })
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

func (b *breakerConnector) GetInfo(ctx context.Context) (*Info, error) {
	out, err := b.execute(func() (any, error) { return b.inner.GetInfo(ctx) })
	if err != nil {
		return nil, err
	}
	return out.(*Info), nil
}

func (b *breakerConnector) SendPayment(ctx context.Context, invoice string) (*PaymentResult, error) {
	out, err := b.execute(func() (any, error) { return b.inner.SendPayment(ctx, invoice) })
	if err != nil {
		return nil, err
	}
	return out.(*PaymentResult), nil
}

func (b *breakerConnector) DecodeInvoice(ctx context.Context, invoice string) (*Invoice, error) {
	out, err := b.execute(func() (any, error) { return b.inner.DecodeInvoice(ctx, invoice) })
	if err != nil {
		return nil, err
	}
	return out.(*Invoice), nil
}
