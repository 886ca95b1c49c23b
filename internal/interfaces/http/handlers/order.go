// internal/interfaces/http/handlers/order.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/domain/checkout"
	"github.com/vaarahi/storefront/internal/interfaces/http/middleware"
	"github.com/vaarahi/storefront/internal/pkg/pdf"
)

// OrderHandler serves the session's completed orders and their receipts.
type OrderHandler struct {
	checkout *checkout.Service
	receipts *pdf.Service
	log      logrus.FieldLogger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(checkoutService *checkout.Service, receipts *pdf.Service, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{
		checkout: checkoutService,
		receipts: receipts,
		log:      log.WithField("handler", "order"),
	}
}

// GetOrders handles GET /orders
func (h *OrderHandler) GetOrders(c *gin.Context) {
	orders, err := h.checkout.Orders(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    orders,
	})
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.checkout.Order(c.Request.Context(), middleware.GetSessionID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    order,
	})
}

// GetReceipt handles GET /orders/:id/receipt. ?format=html returns the page
// the PDF is rendered from; it is also the fallback when no PDF generator
// is installed.
func (h *OrderHandler) GetReceipt(c *gin.Context) {
	order, err := h.checkout.Order(c.Request.Context(), middleware.GetSessionID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") != "html" {
		buf, err := h.receipts.GenerateReceipt(order)
		if err == nil {
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", order.OrderID))
			c.Header("Content-Length", strconv.Itoa(buf.Len()))
			c.Data(http.StatusOK, "application/pdf", buf.Bytes())
			return
		}
		if !errors.Is(err, pdf.ErrGeneratorUnavailable) {
			h.log.WithError(err).WithField("order_id", order.OrderID).Error("Failed to generate receipt")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate receipt"})
			return
		}
		h.log.WithError(err).Warn("PDF generator unavailable, serving HTML receipt")
	}

	html, err := h.receipts.RenderHTML(order)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}
