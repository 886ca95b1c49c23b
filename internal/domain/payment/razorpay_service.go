// internal/domain/payment/razorpay_service.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/config"
)

// ProviderRazorpay is the registry name of the Razorpay gateway.
const ProviderRazorpay = "razorpay"

// RazorpayService talks to the Razorpay Orders API. Without a key id it runs
// in sandbox mode: orders are minted locally and only signatures are checked.
type RazorpayService struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewRazorpayService creates a new Razorpay service
func NewRazorpayService(cfg config.RazorpayConfig, log logrus.FieldLogger) *RazorpayService {
	return &RazorpayService{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.WithField("provider", ProviderRazorpay),
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (r *RazorpayService) WithHTTPClient(c *http.Client) *RazorpayService {
	r.httpClient = c
	return r
}

func (r *RazorpayService) Name() string { return ProviderRazorpay }

func (r *RazorpayService) sandbox() bool { return r.keyID == "" }

// CreateOrder opens a Razorpay order with automatic capture.
func (r *RazorpayService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, &ProviderError{Provider: ProviderRazorpay, Op: "create order", Err: fmt.Errorf("amount must be positive")}
	}

	if r.sandbox() {
		id := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
		r.log.WithField("order_id", id).Warn("Razorpay key not configured, created sandbox order")
		return &Order{
			ID:       id,
			Provider: ProviderRazorpay,
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   StatusCreated,
		}, nil
	}

	body := razorpayCreateOrder{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		PaymentCapture: 1,
		Notes:          req.Notes,
	}

	response, err := r.makeAPICall(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return nil, err
	}

	var created RazorpayOrder
	if err := json.Unmarshal(response, &created); err != nil {
		return nil, &ProviderError{Provider: ProviderRazorpay, Op: "create order", Err: fmt.Errorf("failed to parse Razorpay order response: %w", err)}
	}

	r.log.WithFields(logrus.Fields{
		"order_id": created.ID,
		"amount":   created.Amount,
	}).Info("Razorpay order created")

	return &Order{
		ID:       created.ID,
		Provider: ProviderRazorpay,
		Amount:   created.Amount,
		Currency: created.Currency,
		Receipt:  created.Receipt,
		Status:   StatusCreated,
		KeyID:    r.keyID,
	}, nil
}

// VerifyPayment checks the checkout signature with the server-held secret.
func (r *RazorpayService) VerifyPayment(_ context.Context, v Verification) error {
	if v.OrderID == "" || v.PaymentID == "" || v.Signature == "" {
		return ErrSignatureMismatch
	}
	if !VerifySignature(r.keySecret, v.OrderID, v.PaymentID, v.Signature) {
		r.log.WithField("order_id", v.OrderID).Warn("Payment signature mismatch")
		return ErrSignatureMismatch
	}
	return nil
}

// Status maps the Razorpay order state. Sandbox orders are always pending.
func (r *RazorpayService) Status(ctx context.Context, orderID string) (Status, error) {
	if r.sandbox() {
		return StatusPending, nil
	}

	response, err := r.makeAPICall(ctx, http.MethodGet, "/orders/"+orderID, nil)
	if err != nil {
		return "", err
	}

	var o RazorpayOrder
	if err := json.Unmarshal(response, &o); err != nil {
		return "", &ProviderError{Provider: ProviderRazorpay, Op: "order status", Err: err}
	}

	switch o.Status {
	case "paid":
		return StatusSuccess, nil
	case "attempted":
		return StatusPending, nil
	default:
		return StatusCreated, nil
	}
}

// makeAPICall makes HTTP calls to Razorpay API
func (r *RazorpayService) makeAPICall(ctx context.Context, method, endpoint string, data interface{}) ([]byte, error) {
	op := method + " " + endpoint

	var reqBody io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request data: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.keyID, r.keySecret)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderRazorpay, Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderRazorpay, Op: op, Retryable: true, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		r.log.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Error("Razorpay API call failed")
		return nil, &ProviderError{
			Provider:   ProviderRazorpay,
			Op:         op,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(respBody))),
		}
	}

	return respBody, nil
}

// RazorpayOrder is the order entity returned by the API.
type RazorpayOrder struct {
	ID        string                 `json:"id"`
	Entity    string                 `json:"entity"`
	Amount    int64                  `json:"amount"`
	Currency  string                 `json:"currency"`
	Receipt   string                 `json:"receipt"`
	Status    string                 `json:"status"`
	Notes     map[string]interface{} `json:"notes"`
	CreatedAt int64                  `json:"created_at"`
}

type razorpayCreateOrder struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt,omitempty"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// RazorpayPayment is the payment entity carried by webhooks.
type RazorpayPayment struct {
	ID          string `json:"id"`
	Entity      string `json:"entity"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	OrderID     string `json:"order_id"`
	Method      string `json:"method"`
	Description string `json:"description"`
	Email       string `json:"email"`
	Contact     string `json:"contact"`
	ErrorCode   string `json:"error_code"`
	ErrorReason string `json:"error_reason"`
	CreatedAt   int64  `json:"created_at"`
}

// WebhookEvent is the envelope Razorpay posts to the webhook endpoint.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity RazorpayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}
