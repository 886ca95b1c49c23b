// internal/domain/payment/provider.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrSignatureMismatch means a payment confirmation did not verify.
var ErrSignatureMismatch = errors.New("invalid signature")

// ErrUnknownProvider is returned by Registry.Get.
var ErrUnknownProvider = errors.New("unknown payment provider")

// ErrOrderNotFound is returned when a provider has no record of an order.
var ErrOrderNotFound = errors.New("payment order not found")

// Status is the provider-side state of an order.
type Status string

const (
	StatusCreated Status = "CREATED"
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// CreateOrderRequest asks a provider to open an order. Amount is in minor units.
type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is what a provider returns after CreateOrder. KeyID is the public key
// the browser widget needs; secrets never appear here.
type Order struct {
	ID          string `json:"order_id"`
	Provider    string `json:"provider"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt,omitempty"`
	Status      Status `json:"status"`
	KeyID       string `json:"key_id,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// Verification carries the values a provider hands back after payment.
type Verification struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Provider is the boundary to a payment gateway.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	// VerifyPayment returns ErrSignatureMismatch when the confirmation is not authentic.
	VerifyPayment(ctx context.Context, v Verification) error
	Status(ctx context.Context, orderID string) (Status, error)
}

// ProviderError wraps transport and gateway failures.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed with status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Registry resolves providers by name.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

// NewRegistry builds a registry; defaultName must match one of providers.
func NewRegistry(defaultName string, providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider), defaultName: defaultName}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	if _, ok := r.providers[defaultName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, defaultName)
	}
	return r, nil
}

// Get returns the named provider, or the default one for an empty name.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Default returns the default provider.
func (r *Registry) Default() Provider {
	return r.providers[r.defaultName]
}

// Names lists registered providers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
