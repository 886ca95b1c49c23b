package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaarahi/storefront/internal/config"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/domain/cartsync"
	"github.com/vaarahi/storefront/internal/domain/checkout"
	"github.com/vaarahi/storefront/internal/domain/payment"
	"github.com/vaarahi/storefront/internal/domain/user"
	"github.com/vaarahi/storefront/internal/domain/wishlist"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
	"github.com/vaarahi/storefront/internal/interfaces/http/routes"
	"github.com/vaarahi/storefront/internal/pkg/auth"
	"github.com/vaarahi/storefront/internal/pkg/notify"
	"github.com/vaarahi/storefront/internal/pkg/pdf"
)

const (
	testKeySecret     = "rzp-test-secret"
	testWebhookSecret = "rzp-webhook-secret"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "Vaarahi",
			Version:     "test",
			Environment: "test",
			BaseURL:     "http://localhost:8080",
			CompanyName: "Vaarahi",
		},
		Server: config.ServerConfig{
			Port:            "0",
			RequestTimeout:  5 * time.Second,
			MaxRequestBytes: 1 << 16,
		},
		Storage: config.StorageConfig{Driver: "memory", KeyPrefix: "test"},
		JWT: config.JWTConfig{
			Secret:            "test-secret-with-at-least-32-characters",
			AccessTokenExpiry: time.Hour,
			RememberMeExpiry:  24 * time.Hour,
		},
		Security: config.SecurityConfig{
			BcryptCost:         4,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
			CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Session-ID"},
		},
		Payment: config.PaymentConfig{
			DefaultProvider:  payment.ProviderRazorpay,
			Currency:         "INR",
			ProviderTimeout:  5 * time.Second,
			BreakerFailures:  5,
			BreakerOpenDelay: time.Minute,
			Razorpay: config.RazorpayConfig{
				KeySecret:     testKeySecret,
				WebhookSecret: testWebhookSecret,
			},
			PhonePe: config.PhonePeConfig{
				MerchantID: "PGTESTPAYUAT",
				SaltKey:    "test-salt",
				SaltIndex:  "1",
			},
		},
		Checkout: config.CheckoutConfig{
			SessionTimeout:   15 * time.Minute,
			RedirectDelay:    2 * time.Second,
			ConfirmationPath: "/order-confirmation.html",
			CartPath:         "/cart.html",
		},
	}
}

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := testConfig()
	kv := kvstore.NewMemory()
	keys := kvstore.NewKeyspace(cfg.Storage.KeyPrefix)

	phonePe := payment.NewPhonePeSimulator(cfg.Payment.PhonePe, log)
	providers, err := payment.NewRegistry(payment.ProviderRazorpay,
		payment.NewRazorpayService(cfg.Payment.Razorpay, log),
		phonePe,
	)
	require.NoError(t, err)

	feed := notify.NewFeed(log)
	carts := cart.NewService(kv, keys, log)
	sync := cartsync.New(kv, keys, log)
	sync.Attach(carts)

	tokens := auth.NewJWTManager(cfg.JWT, cfg.App.Name)
	users := user.NewService(kv, keys, auth.NewPasswordManager(cfg.Security.BcryptCost), tokens, log)
	checkoutSvc := checkout.NewService(carts, providers, kv, keys, feed, nil, cfg, log)

	srv := NewServer(cfg, &routes.Services{
		Config:    cfg,
		Carts:     carts,
		Sync:      sync,
		Checkout:  checkoutSvc,
		Providers: providers,
		PhonePe:   phonePe,
		Users:     users,
		Wishlist:  wishlist.NewService(kv, keys, carts, feed, log),
		Feed:      feed,
		Receipts:  pdf.NewService(cfg.App),
		Tokens:    tokens,
		Log:       log,
	}, nil, nil)

	return &testServer{handler: srv.Handler()}
}

type call struct {
	method  string
	path    string
	body    interface{}
	session string
	headers map[string]string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set("X-Session-ID", c.session)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	d, ok := decode(t, w)["data"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return d
}

var testCustomer = map[string]interface{}{
	"firstName":     "Asha",
	"lastName":      "Rao",
	"email":         "asha@example.com",
	"phone":         "9876543210",
	"streetAddress": "12 MG Road",
	"city":          "Bengaluru",
	"state":         "Karnataka",
	"postalCode":    "560001",
}

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func addChair(t *testing.T, s *testServer, session string) {
	t.Helper()
	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: session, body: map[string]interface{}{
		"id": "chair-blue", "name": "Modern Chair", "price": "$98.85", "quantity": 2,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = s.do(t, call{method: http.MethodGet, path: "/ready"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSession_IssuedWhenMissing(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodGet, path: "/api/v1/cart"})
	require.Equal(t, http.StatusOK, w.Code)
	issued := w.Header().Get("X-Session-ID")
	assert.NotEmpty(t, issued)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "session_id="+issued)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: "../../etc"})
	assert.NotEqual(t, "../../etc", w.Header().Get("X-Session-ID"))
}

func TestCart_AddUpdateRemove(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	w := s.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.EqualValues(t, 2, d["count"])
	assert.Equal(t, "197.70", d["total"])

	w = s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/0", session: "s1", body: map[string]int{"quantity": 3}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, data(t, w)["count"])

	w = s.do(t, call{method: http.MethodDelete, path: "/api/v1/cart/items/5", session: "s1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, call{method: http.MethodDelete, path: "/api/v1/cart/items/0", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, data(t, w)["count"])
}

func TestCart_RejectsInvalidInput(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: map[string]interface{}{
		"id": "chair", "name": "Chair", "price": "free",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/abc", session: "s1", body: map[string]int{"quantity": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	addChair(t, s, "s1")
	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/coupon", session: "s1", body: map[string]string{"code": "NOPE"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func notifications(t *testing.T, s *testServer, session string) []map[string]interface{} {
	t.Helper()
	w := s.do(t, call{method: http.MethodGet, path: "/api/v1/notifications", session: session})
	require.Equal(t, http.StatusOK, w.Code)
	raw, _ := decode(t, w)["data"].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, n := range raw {
		out = append(out, n.(map[string]interface{}))
	}
	return out
}

func TestCart_UpdateQuantityCoercesInvalidInput(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	for _, body := range []interface{}{
		map[string]interface{}{"quantity": 0},
		map[string]interface{}{"quantity": "abc"},
		map[string]interface{}{"quantity": -4},
		map[string]interface{}{},
	} {
		w := s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/0", session: "s1", body: map[string]int{"quantity": 3}})
		require.Equal(t, http.StatusOK, w.Code)
		require.EqualValues(t, 3, data(t, w)["count"])

		w = s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/0", session: "s1", body: body})
		require.Equal(t, http.StatusOK, w.Code, "%v: %s", body, w.Body.String())
		d := data(t, w)
		items := d["items"].([]interface{})
		assert.EqualValues(t, 1, items[0].(map[string]interface{})["quantity"], "%v", body)
		assert.EqualValues(t, 1, d["count"], "%v", body)
	}

	w := s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/0", session: "s1", body: map[string]interface{}{"quantity": "4"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, data(t, w)["count"])
}

func TestCart_RejectionsNotifyShopper(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")
	notifications(t, s, "s1")

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/coupon", session: "s1", body: map[string]string{"code": "NOPE"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	notes := notifications(t, s, "s1")
	require.Len(t, notes, 1)
	assert.Equal(t, "error", notes[0]["type"])
	assert.Equal(t, "Invalid coupon code", notes[0]["message"])

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: map[string]interface{}{
		"id": "lamp", "name": "Lamp", "price": "free",
	}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	notes = notifications(t, s, "s1")
	require.Len(t, notes, 1)
	assert.Equal(t, "error", notes[0]["type"])

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: map[string]interface{}{
		"name": "No id", "price": 10,
	}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, notifications(t, s, "s1"), 1)

	// the cart is untouched by rejected input
	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: "s1"})
	d := data(t, w)
	assert.EqualValues(t, 2, d["count"])
	assert.Empty(t, d["coupon"])
}

func TestCart_Coupon(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/coupon", session: "s1", body: map[string]string{"code": "vaarahi"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := data(t, w)
	assert.Equal(t, "VAARAHI", d["coupon"])
	assert.Equal(t, "19.77", d["discount"])
	assert.Equal(t, "177.93", d["total"])
}

func TestCart_LegacyWriteIsReconciled(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	w := s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/legacy", session: "s1", body: []map[string]interface{}{
		{"id": "chair", "name": "Modern Chair", "price": "$98.85", "quantity": 1},
		{"id": "table", "name": "Table", "price": "$119.99", "quantity": 1},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: "s1"})
	d := data(t, w)
	// shared lines keep the larger quantity
	assert.EqualValues(t, 3, d["count"])
}

func TestCheckout_RazorpayFlow(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/place-order", session: "s1", body: testCustomer})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placed := data(t, w)
	orderID := placed["order_id"].(string)
	assert.EqualValues(t, 19770, placed["amount"])
	assert.NotEmpty(t, orderID)

	// the cart is frozen while the payment window is open
	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: map[string]interface{}{
		"id": "table", "name": "Table", "price": 119.99,
	}})
	assert.Equal(t, http.StatusLocked, w.Code)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/place-order", session: "s1", body: testCustomer})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/payment/success", session: "s1", body: map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_123",
		"razorpay_signature":  payment.Sign(testKeySecret, orderID, "pay_123"),
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	order := data(t, w)["order"].(map[string]interface{})
	completedID := order["orderId"].(string)
	assert.Equal(t, "197.70", order["amount"])

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: "s1"})
	d := data(t, w)
	assert.EqualValues(t, 0, d["count"])
	assert.Equal(t, false, d["locked"])

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/orders", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/orders/" + completedID + "/receipt?format=html", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), completedID)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/orders/" + completedID, session: "other"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/notifications", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["data"])
}

func TestCheckout_BadSignatureKeepsCart(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/place-order", session: "s1", body: testCustomer})
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := data(t, w)["order_id"].(string)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/payment/success", session: "s1", body: map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_123",
		"razorpay_signature":  "forged",
	}})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: "s1"})
	d := data(t, w)
	assert.EqualValues(t, 2, d["count"])
	assert.Equal(t, false, d["locked"])
}

func TestCheckout_ValidationAndEmptyCart(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/place-order", session: "s1", body: testCustomer})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	addChair(t, s, "s1")
	bad := map[string]interface{}{}
	for k, v := range testCustomer {
		bad[k] = v
	}
	bad["postalCode"] = "5600"
	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/place-order", session: "s1", body: bad})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "postalCode", decode(t, w)["field"])
}

func TestCheckout_PhonePeSimulatedPayment(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	body := map[string]interface{}{"provider": payment.ProviderPhonePe}
	for k, v := range testCustomer {
		body[k] = v
	}
	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/place-order", session: "s1", body: body})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placed := data(t, w)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/checkout/payment/status", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PENDING", data(t, w)["session"].(map[string]interface{})["status"])

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/phonepe/simulate", session: "s1", body: map[string]interface{}{
		"transactionId": placed["order_id"], "success": true,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/checkout/payment/status", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCESS", data(t, w)["session"].(map[string]interface{})["status"])
}

func TestCheckout_Dismiss(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/place-order", session: "s1", body: testCustomer})
	require.Equal(t, http.StatusCreated, w.Code)
	txn := data(t, w)["transaction_id"]

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/payment/dismiss", session: "s1", body: map[string]interface{}{"transactionId": txn}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CANCELLED", data(t, w)["status"])

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", session: "s1", body: map[string]interface{}{
		"id": "table", "name": "Table", "price": 119.99,
	}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateway_CreateAndVerify(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodPost, path: "/api/create-order", body: map[string]interface{}{"amount": 50000, "currency": "INR"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode(t, w)
	orderID := created["order_id"].(string)
	assert.EqualValues(t, 50000, created["amount"])
	assert.Equal(t, "INR", created["currency"])

	w = s.do(t, call{method: http.MethodPost, path: "/api/verify-payment", body: map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "bad",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "failure", decode(t, w)["status"])
	assert.Equal(t, "Invalid signature", decode(t, w)["message"])

	w = s.do(t, call{method: http.MethodPost, path: "/api/verify-payment", body: map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  payment.Sign(testKeySecret, orderID, "pay_1"),
	}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode(t, w)["status"])
}

func TestGateway_RejectsNonPositiveAmount(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodPost, path: "/api/create-order", body: map[string]interface{}{"amount": 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook(t *testing.T) {
	s := newTestServer(t)
	addChair(t, s, "s1")

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/place-order", session: "s1", body: testCustomer})
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := data(t, w)["order_id"].(string)

	event := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"` + orderID + `"}}}}`)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/webhooks/razorpay", body: event,
		headers: map[string]string{"X-Razorpay-Signature": "forged"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/webhooks/razorpay", body: event,
		headers: map[string]string{"X-Razorpay-Signature": hmacHex(testWebhookSecret, event)}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "SUCCESS", data(t, w)["status"])

	unknown := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_unknown"}}}}`)
	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/webhooks/razorpay", body: unknown,
		headers: map[string]string{"X-Razorpay-Signature": hmacHex(testWebhookSecret, unknown)}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Event ignored", decode(t, w)["message"])
}

func TestAuth_RegisterAndChangePassword(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", session: "s1", body: map[string]string{
		"name": "Asha Rao", "email": "asha@example.com", "password": "secret123", "confirmPassword": "secret123",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := data(t, w)["access_token"].(string)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", session: "s2", body: map[string]string{
		"name": "Other", "email": "ASHA@example.com", "password": "secret123", "confirmPassword": "secret123",
	}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/checkout/prefill", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Asha", data(t, w)["firstName"])

	change := map[string]string{"current_password": "secret123", "new_password": "better456"}
	w = s.do(t, call{method: http.MethodPut, path: "/api/v1/auth/password", session: "s1", body: change})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, call{method: http.MethodPut, path: "/api/v1/auth/password", body: change,
		headers: map[string]string{"Authorization": "Bearer " + token}})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/login", session: "s3", body: map[string]string{
		"email": "asha@example.com", "password": "secret123",
	}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWishlist_MoveToCart(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist", session: "s1", body: map[string]interface{}{
		"id": "lamp", "name": "Lamp", "price": 45.5,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist", session: "s1", body: map[string]interface{}{
		"id": "lamp", "name": "Lamp", "price": 45.5,
	}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/wishlist/0/move-to-cart", session: "s1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/cart/count", session: "s1"})
	assert.EqualValues(t, 1, data(t, w)["count"])

	w = s.do(t, call{method: http.MethodDelete, path: "/api/v1/wishlist/0", session: "s1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodOptions, path: "/api/v1/cart",
		headers: map[string]string{"Origin": "http://localhost:3000"}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(t, call{method: http.MethodOptions, path: "/api/v1/cart",
		headers: map[string]string{"Origin": "http://evil.example"}})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestSizeLimit(t *testing.T) {
	s := newTestServer(t)

	big := bytes.Repeat([]byte("a"), 1<<17)
	w := s.do(t, call{method: http.MethodPut, path: "/api/v1/cart/legacy", session: "s1", body: big})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
