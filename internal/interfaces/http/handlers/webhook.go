// internal/interfaces/http/handlers/webhook.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/domain/checkout"
	"github.com/vaarahi/storefront/internal/domain/payment"
)

// RazorpaySignatureHeader carries the HMAC of the raw webhook body.
const RazorpaySignatureHeader = "X-Razorpay-Signature"

// WebhookHandler receives server-to-server payment events.
type WebhookHandler struct {
	checkout *checkout.Service
	secret   string
	log      logrus.FieldLogger
}

// NewWebhookHandler creates a webhook handler. An empty secret disables the endpoint.
func NewWebhookHandler(checkoutService *checkout.Service, webhookSecret string, log logrus.FieldLogger) *WebhookHandler {
	return &WebhookHandler{
		checkout: checkoutService,
		secret:   webhookSecret,
		log:      log.WithField("handler", "webhook"),
	}
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Razorpay handles POST /webhooks/razorpay
func (h *WebhookHandler) Razorpay(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhooks are not configured"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		invalidRequest(c, err)
		return
	}
	if !payment.VerifyWebhookSignature(h.secret, body, c.GetHeader(RazorpaySignatureHeader)) {
		h.log.Warn("Rejected webhook with invalid signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
		return
	}

	var event razorpayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		invalidRequest(c, err)
		return
	}
	entity := event.Payload.Payment.Entity
	log := h.log.WithFields(logrus.Fields{
		"event":      event.Event,
		"order_id":   entity.OrderID,
		"payment_id": entity.ID,
	})

	if entity.OrderID == "" {
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	}

	result, err := h.checkout.HandleProviderEvent(c.Request.Context(), entity.OrderID, checkout.ProviderEvent{
		Kind:      event.Event,
		PaymentID: entity.ID,
		Reason:    entity.ErrorDescription,
	})
	switch {
	case errors.Is(err, checkout.ErrNoActiveSession), errors.Is(err, checkout.ErrSessionMismatch):
		// not ours, or already superseded; acknowledge so the gateway stops retrying
		log.Info("Ignoring webhook for unknown order")
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	case err != nil:
		log.WithError(err).Error("Failed to apply webhook event")
		respondError(c, err)
		return
	}

	log.WithField("status", result.Session.Status).Info("Applied webhook event")
	c.JSON(http.StatusOK, gin.H{
		"message": "Event processed",
		"data":    gin.H{"status": result.Session.Status, "duplicate": result.Duplicate},
	})
}
