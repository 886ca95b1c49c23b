// internal/domain/checkout/entity.go
package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/vaarahi/storefront/internal/domain/cart"
)

var (
	// ErrCheckoutInProgress rejects a second checkout while one is pending.
	ErrCheckoutInProgress = errors.New("a payment is already in progress for this session")
	// ErrEmptyCart is returned when there is nothing to pay for.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoActiveSession means there is no pending payment to act on.
	ErrNoActiveSession = errors.New("no active payment session")
	// ErrSessionMismatch means the caller referenced a different transaction than the pending one.
	ErrSessionMismatch = errors.New("transaction does not match the active payment session")
	// ErrOrderNotFound is returned by Order for unknown ids.
	ErrOrderNotFound = errors.New("order not found")
)

// ValidationError names the first missing or malformed checkout field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Status of a payment session.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailure   Status = "FAILURE"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusCancelled
}

// Cancellation and failure reasons recorded on sessions.
const (
	ReasonAbandoned         = "abandoned"
	ReasonDismissed         = "dismissed"
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonProviderError     = "provider_error"
	ReasonDeclined          = "declined"
)

// Customer is the delivery and contact form submitted at checkout.
type Customer struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postalCode"`
}

// Validate checks fields in form order and reports the first problem.
func (c Customer) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"firstName", c.FirstName},
		{"email", c.Email},
		{"phone", c.Phone},
		{"streetAddress", c.StreetAddress},
		{"city", c.City},
		{"state", c.State},
		{"postalCode", c.PostalCode},
	}

	for _, r := range required {
		v := strings.TrimSpace(r.value)
		if v == "" {
			return &ValidationError{Field: r.field, Message: "is required"}
		}
		switch r.field {
		case "email":
			if !strings.Contains(v, "@") {
				return &ValidationError{Field: r.field, Message: "must be a valid email address"}
			}
		case "phone":
			if countDigits(v) < 10 {
				return &ValidationError{Field: r.field, Message: "must contain at least 10 digits"}
			}
		case "postalCode":
			if len(v) != 6 || countDigits(v) != 6 {
				return &ValidationError{Field: r.field, Message: "must be a 6 digit PIN code"}
			}
		}
	}
	return nil
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// CustomerInfo is the customer block stored on a completed order.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Info converts the checkout form to the stored customer block.
func (c Customer) Info() CustomerInfo {
	return CustomerInfo{
		Name:    c.FullName(),
		Email:   strings.TrimSpace(c.Email),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.StreetAddress),
		City:    strings.TrimSpace(c.City),
		State:   strings.TrimSpace(c.State),
		Pincode: strings.TrimSpace(c.PostalCode),
	}
}

// OrderSnapshot freezes what is being paid for when the session starts.
type OrderSnapshot struct {
	Items    []cart.LineItem `json:"items"`
	Subtotal string          `json:"subtotal"`
	Discount string          `json:"discount"`
	Total    string          `json:"total"`
	Coupon   string          `json:"coupon,omitempty"`
	Customer Customer        `json:"customer"`
}

// PaymentSession tracks one attempt to pay for the cart.
type PaymentSession struct {
	TransactionID   string        `json:"transactionId"`
	ProviderOrderID string        `json:"providerOrderId,omitempty"`
	Provider        string        `json:"provider"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
	Status          Status        `json:"status"`
	Reason          string        `json:"reason,omitempty"`
	PaymentID       string        `json:"paymentId,omitempty"`
	OrderID         string        `json:"orderId,omitempty"`
	KeyID           string        `json:"keyId,omitempty"`
	CheckoutURL     string        `json:"checkoutUrl,omitempty"`
	Snapshot        OrderSnapshot `json:"snapshot"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// CompletedOrder is appended once per successful payment and never rewritten.
type CompletedOrder struct {
	OrderID       string          `json:"orderId"`
	TransactionID string          `json:"transactionId"`
	PaymentID     string          `json:"paymentId,omitempty"`
	Provider      string          `json:"provider"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	Items         []cart.LineItem `json:"items"`
	CustomerInfo  CustomerInfo    `json:"customerInfo"`
	Timestamp     time.Time       `json:"timestamp"`
	Status        string          `json:"status"`
}

// OrderStatusCompleted is the only status a stored order carries.
const OrderStatusCompleted = "COMPLETED"

// Confirmation is what the browser reports after the provider's success callback.
type Confirmation struct {
	TransactionID   string `json:"transactionId"`
	ProviderOrderID string `json:"providerOrderId"`
	PaymentID       string `json:"paymentId"`
	Signature       string `json:"signature"`
}

// ProviderEvent is a server-to-server notification from a provider.
type ProviderEvent struct {
	Kind      string `json:"kind"`
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason,omitempty"`
}

// Provider event kinds.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// Result is returned by operations that can finish a session.
type Result struct {
	Session   *PaymentSession `json:"session"`
	Order     *CompletedOrder `json:"order,omitempty"`
	Duplicate bool            `json:"duplicate"`
}
