// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/domain/payment"
)

// PaymentHandler serves the two stateless gateway endpoints the storefront's
// payment widget talks to: order creation and signature verification.
type PaymentHandler struct {
	provider payment.Provider
	log      logrus.FieldLogger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(provider payment.Provider, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{
		provider: provider,
		log:      log.WithField("handler", "payment"),
	}
}

// CreateOrderRequest carries the amount in minor units.
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// VerifyPaymentRequest is the payload of the widget's success handler.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// CreateOrder handles POST /api/create-order
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive integer in minor units"})
		return
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}

	order, err := h.provider.CreateOrder(c.Request.Context(), payment.CreateOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to create gateway order")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
	})
}

// VerifyPayment handles POST /api/verify-payment
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failure", "message": "Invalid request"})
		return
	}

	err := h.provider.VerifyPayment(c.Request.Context(), payment.Verification{
		OrderID:   req.RazorpayOrderID,
		PaymentID: req.RazorpayPaymentID,
		Signature: req.RazorpaySignature,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	case errors.Is(err, payment.ErrSignatureMismatch):
		h.log.WithField("order_id", req.RazorpayOrderID).Warn("Rejected payment with invalid signature")
		c.JSON(http.StatusBadRequest, gin.H{"status": "failure", "message": "Invalid signature"})
	default:
		h.log.WithError(err).Error("Payment verification failed")
		c.JSON(http.StatusBadGateway, gin.H{"status": "failure", "message": "Verification unavailable"})
	}
}
