// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vaarahi/storefront/internal/config"
	"github.com/vaarahi/storefront/internal/domain/checkout"
	"github.com/vaarahi/storefront/internal/domain/payment"
	"github.com/vaarahi/storefront/internal/domain/user"
	"github.com/vaarahi/storefront/internal/interfaces/http/middleware"
)

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	checkout  *checkout.Service
	users     *user.Service
	providers *payment.Registry
	phonePe   *payment.PhonePeSimulator
	config    config.PaymentConfig
	timeout   config.CheckoutConfig
}

// NewCheckoutHandler creates a new checkout handler. phonePe may be nil when
// the simulator is not registered.
func NewCheckoutHandler(
	checkoutService *checkout.Service,
	users *user.Service,
	providers *payment.Registry,
	phonePe *payment.PhonePeSimulator,
	cfg *config.Config,
) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:  checkoutService,
		users:     users,
		providers: providers,
		phonePe:   phonePe,
		config:    cfg.Payment,
		timeout:   cfg.Checkout,
	}
}

// PlaceOrderRequest is the checkout form plus the chosen provider.
type PlaceOrderRequest struct {
	checkout.Customer
	Provider string `json:"provider"`
}

// PaymentSuccessRequest accepts both the generic field names and the ones the
// Razorpay widget hands to its success handler.
type PaymentSuccessRequest struct {
	TransactionID     string `json:"transactionId"`
	ProviderOrderID   string `json:"providerOrderId"`
	PaymentID         string `json:"paymentId"`
	Signature         string `json:"signature"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (r PaymentSuccessRequest) confirmation() checkout.Confirmation {
	return checkout.Confirmation{
		TransactionID:   r.TransactionID,
		ProviderOrderID: firstNonEmpty(r.ProviderOrderID, r.RazorpayOrderID),
		PaymentID:       firstNonEmpty(r.PaymentID, r.RazorpayPaymentID),
		Signature:       firstNonEmpty(r.Signature, r.RazorpaySignature),
	}
}

// PaymentFailureRequest reports a failed or dismissed payment window.
type PaymentFailureRequest struct {
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason"`
}

// SimulatePaymentRequest settles a simulated PhonePe payment.
type SimulatePaymentRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
	Success       bool   `json:"success"`
}

// GetConfig handles GET /checkout/config. Only public identifiers are exposed.
func (h *CheckoutHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout configuration retrieved successfully",
		"data": gin.H{
			"providers":        h.providers.Names(),
			"default_provider": h.providers.Default().Name(),
			"currency":         h.config.Currency,
			"razorpay_key_id":  h.config.Razorpay.KeyID,
			"session_timeout":  h.timeout.SessionTimeout.String(),
		},
	})
}

// PlaceOrder handles POST /checkout/place-order
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	sess, err := h.checkout.PlaceOrder(c.Request.Context(), middleware.GetSessionID(c), req.Provider, req.Customer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Payment session started",
		"data": gin.H{
			"transaction_id": sess.TransactionID,
			"provider":       sess.Provider,
			"order_id":       sess.ProviderOrderID,
			"key_id":         sess.KeyID,
			"amount":         sess.Amount,
			"currency":       sess.Currency,
			"checkout_url":   sess.CheckoutURL,
			"description":    "Vaarahi Order",
			"expires_at":     sess.CreatedAt.Add(h.timeout.SessionTimeout),
			"prefill": gin.H{
				"name":    req.Customer.FullName(),
				"email":   req.Email,
				"contact": req.Phone,
			},
		},
	})
}

// PaymentSuccess handles POST /checkout/payment/success
func (h *CheckoutHandler) PaymentSuccess(c *gin.Context) {
	var req PaymentSuccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	result, err := h.checkout.ConfirmSuccess(c.Request.Context(), middleware.GetSessionID(c), req.confirmation())
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Payment successful! Order has been placed."
	if result.Duplicate {
		message = "Payment already confirmed"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    result,
	})
}

// PaymentFailure handles POST /checkout/payment/failure
func (h *CheckoutHandler) PaymentFailure(c *gin.Context) {
	var req PaymentFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	sess, err := h.checkout.ReportFailure(c.Request.Context(), middleware.GetSessionID(c), req.TransactionID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment failure recorded",
		"data":    sess,
	})
}

// PaymentDismiss handles POST /checkout/payment/dismiss
func (h *CheckoutHandler) PaymentDismiss(c *gin.Context) {
	var req PaymentFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	sess, err := h.checkout.Cancel(c.Request.Context(), middleware.GetSessionID(c), req.TransactionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment cancelled",
		"data":    sess,
	})
}

// PaymentStatus handles GET /checkout/payment/status. A provider that cannot
// be reached leaves the session pending and answers 202.
func (h *CheckoutHandler) PaymentStatus(c *gin.Context) {
	result, err := h.checkout.PollStatus(c.Request.Context(), middleware.GetSessionID(c))
	switch {
	case err == nil, errors.Is(err, checkout.ErrAlreadySettled):
		// a failed or cancelled session is a normal poll answer
	case result != nil:
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Payment status unavailable, still pending",
			"data":    result,
		})
		return
	default:
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment status retrieved successfully",
		"data":    result,
	})
}

// GetSession handles GET /checkout/session
func (h *CheckoutHandler) GetSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := middleware.GetSessionID(c)

	active, err := h.checkout.Active(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	history, err := h.checkout.History(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment session retrieved successfully",
		"data": gin.H{
			"active":  active,
			"history": history,
		},
	})
}

// Prefill handles GET /checkout/prefill
func (h *CheckoutHandler) Prefill(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)

	profile, err := h.users.Current(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout form prefilled from profile",
		"data":    h.checkout.Prefill(sessionID, profile),
	})
}

// SimulatePayment handles POST /checkout/phonepe/simulate, standing in for
// the PhonePe pay page. The shopper then polls the payment status.
func (h *CheckoutHandler) SimulatePayment(c *gin.Context) {
	if h.phonePe == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "PhonePe simulator is not enabled"})
		return
	}

	var req SimulatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	if err := h.phonePe.Settle(req.TransactionID, req.Success); err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown transaction"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Simulated payment recorded",
		"data": gin.H{
			"transaction_id": req.TransactionID,
			"success":        req.Success,
		},
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
