package payment

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/pkg/breaker"
)

// Guarded bounds every provider call with a timeout and a circuit breaker.
// Signature mismatches and unknown orders do not count against the breaker.
type Guarded struct {
	inner   Provider
	timeout time.Duration
	cb      *breaker.Breaker
}

// NewGuarded wraps p.
func NewGuarded(p Provider, timeout time.Duration, maxFailures uint32, openTimeout time.Duration, log logrus.FieldLogger) *Guarded {
	return &Guarded{
		inner:   p,
		timeout: timeout,
		cb: breaker.New(breaker.Settings{
			Name:        "payment-" + p.Name(),
			MaxFailures: maxFailures,
			OpenTimeout: openTimeout,
			Ignore: func(err error) bool {
				return errors.Is(err, ErrSignatureMismatch) || errors.Is(err, ErrOrderNotFound)
			},
			Log: log,
		}),
	}
}

// Unwrap returns the wrapped provider.
func (g *Guarded) Unwrap() Provider { return g.inner }

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	o, err := breaker.Do(g.cb, func() (*Order, error) {
		return g.inner.CreateOrder(ctx, req)
	})
	return o, g.wrap("create order", err)
}

func (g *Guarded) VerifyPayment(ctx context.Context, v Verification) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	_, err := breaker.Do(g.cb, func() (struct{}, error) {
		return struct{}{}, g.inner.VerifyPayment(ctx, v)
	})
	return g.wrap("verify payment", err)
}

func (g *Guarded) Status(ctx context.Context, orderID string) (Status, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	s, err := breaker.Do(g.cb, func() (Status, error) {
		return g.inner.Status(ctx, orderID)
	})
	return s, g.wrap("status", err)
}

func (g *Guarded) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Guarded) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if breaker.IsOpen(err) {
		return &ProviderError{Provider: g.inner.Name(), Op: op, Retryable: true, Err: err}
	}
	return err
}
