package payment

import (
	"context"
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/config"
)

// ProviderPhonePe is the registry name of the simulated PhonePe flow.
const ProviderPhonePe = "phonepe"

const phonePePayPath = "/pg/v1/pay"

// PhonePeSimulator mimics the PhonePe UAT pay page. Orders stay PENDING
// until Settle records the shopper's choice on the simulated page.
type PhonePeSimulator struct {
	merchantID string
	saltKey    string
	saltIndex  string
	latency    time.Duration
	log        logrus.FieldLogger

	now func() time.Time

	mu     sync.Mutex
	orders map[string]*phonePeOrder
}

type phonePeOrder struct {
	amount    int64
	status    Status
	createdAt time.Time
	settledAt time.Time
}

type phonePePayRequest struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	Amount                int64  `json:"amount"`
	RedirectMode          string `json:"redirectMode"`
	PaymentInstrument     struct {
		Type string `json:"type"`
	} `json:"paymentInstrument"`
}

// NewPhonePeSimulator creates the simulator from merchant configuration.
func NewPhonePeSimulator(cfg config.PhonePeConfig, log logrus.FieldLogger) *PhonePeSimulator {
	return &PhonePeSimulator{
		merchantID: cfg.MerchantID,
		saltKey:    cfg.SaltKey,
		saltIndex:  cfg.SaltIndex,
		latency:    cfg.SimulatedLatency,
		log:        log.WithField("provider", ProviderPhonePe),
		now:        time.Now,
		orders:     make(map[string]*phonePeOrder),
	}
}

func (p *PhonePeSimulator) Name() string { return ProviderPhonePe }

// CreateOrder uses the receipt as merchant transaction id.
func (p *PhonePeSimulator) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, &ProviderError{Provider: ProviderPhonePe, Op: "create order", Err: fmt.Errorf("amount must be positive")}
	}
	if req.Receipt == "" {
		return nil, &ProviderError{Provider: ProviderPhonePe, Op: "create order", Err: fmt.Errorf("merchant transaction id is required")}
	}
	if err := p.wait(ctx); err != nil {
		return nil, &ProviderError{Provider: ProviderPhonePe, Op: "create order", Retryable: true, Err: err}
	}

	body := phonePePayRequest{
		MerchantID:            p.merchantID,
		MerchantTransactionID: req.Receipt,
		Amount:                req.Amount,
		RedirectMode:          "REDIRECT",
	}
	body.PaymentInstrument.Type = "PAY_PAGE"

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pay request: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(raw)
	checksum := PhonePeChecksum(payload, phonePePayPath, p.saltKey, p.saltIndex)

	p.mu.Lock()
	p.orders[req.Receipt] = &phonePeOrder{amount: req.Amount, status: StatusPending, createdAt: p.now()}
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"transaction_id": req.Receipt,
		"x_verify":       checksum,
	}).Info("PhonePe payment initiated")

	q := url.Values{}
	q.Set("payment", "simulate")
	q.Set("transactionId", req.Receipt)

	return &Order{
		ID:          req.Receipt,
		Provider:    ProviderPhonePe,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      StatusPending,
		CheckoutURL: "/checkout.html?" + q.Encode(),
	}, nil
}

// Settle records the outcome chosen on the simulated pay page.
func (p *PhonePeSimulator) Settle(orderID string, success bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.status == StatusPending {
		o.status = StatusFailure
		if success {
			o.status = StatusSuccess
		}
		o.settledAt = p.now()
	}
	return nil
}

// Prune forgets settled orders older than settledFor and orders still
// pending after pendingFor. It returns how many were removed.
func (p *PhonePeSimulator) Prune(settledFor, pendingFor time.Duration) int {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, o := range p.orders {
		stale := o.status == StatusPending && now.Sub(o.createdAt) > pendingFor
		done := o.status != StatusPending && now.Sub(o.settledAt) > settledFor
		if stale || done {
			delete(p.orders, id)
			removed++
		}
	}
	return removed
}

// Tracked reports how many orders the simulator holds.
func (p *PhonePeSimulator) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

// StatusChecksum is the X-VERIFY header of a status call, used here as the
// confirmation signature.
func (p *PhonePeSimulator) StatusChecksum(orderID string) string {
	path := fmt.Sprintf("/pg/v1/status/%s/%s", p.merchantID, orderID)
	return PhonePeChecksum("", path, p.saltKey, p.saltIndex)
}

// VerifyPayment accepts a confirmation whose signature is the status
// checksum and whose order has settled successfully.
func (p *PhonePeSimulator) VerifyPayment(ctx context.Context, v Verification) error {
	if !hmac.Equal([]byte(v.Signature), []byte(p.StatusChecksum(v.OrderID))) {
		return ErrSignatureMismatch
	}
	status, err := p.Status(ctx, v.OrderID)
	if err != nil {
		return err
	}
	if status != StatusSuccess {
		return ErrSignatureMismatch
	}
	return nil
}

func (p *PhonePeSimulator) Status(ctx context.Context, orderID string) (Status, error) {
	if err := p.wait(ctx); err != nil {
		return "", &ProviderError{Provider: ProviderPhonePe, Op: "status", Retryable: true, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return "", ErrOrderNotFound
	}
	return o.status, nil
}

func (p *PhonePeSimulator) wait(ctx context.Context) error {
	if p.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
