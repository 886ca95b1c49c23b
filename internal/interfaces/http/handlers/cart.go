// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/domain/cartsync"
	"github.com/vaarahi/storefront/internal/domain/pricing"
	"github.com/vaarahi/storefront/internal/interfaces/http/middleware"
	"github.com/vaarahi/storefront/internal/pkg/notify"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	carts    *cart.Service
	sync     *cartsync.Synchronizer
	notifier notify.Notifier
}

// NewCartHandler creates a new cart handler. Rejected items and coupons are
// reported to the shopper through notifier.
func NewCartHandler(carts *cart.Service, sync *cartsync.Synchronizer, notifier notify.Notifier) *CartHandler {
	return &CartHandler{carts: carts, sync: sync, notifier: notifier}
}

// CartResponse is the rendered cart. Amounts are fixed to two decimals.
type CartResponse struct {
	Items          []cart.LineItem `json:"items"`
	Count          int             `json:"count"`
	Coupon         string          `json:"coupon,omitempty"`
	Subtotal       string          `json:"subtotal"`
	Discount       string          `json:"discount"`
	Total          string          `json:"total"`
	FormattedTotal string          `json:"formatted_total"`
	Locked         bool            `json:"locked"`
}

func newCartResponse(snap cart.Snapshot) CartResponse {
	return CartResponse{
		Items:          snap.Items,
		Count:          snap.Count,
		Coupon:         snap.Totals.Coupon,
		Subtotal:       pricing.Format(snap.Totals.Subtotal),
		Discount:       pricing.Format(snap.Totals.Discount),
		Total:          pricing.Format(snap.Totals.Total),
		FormattedTotal: pricing.FormatINR(snap.Totals.Total),
		Locked:         snap.Locked,
	}
}

// AddToCartRequest represents add to cart request. Price may be a number or
// a display string such as "$98.85".
type AddToCartRequest struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    interface{} `json:"price"`
	Image    string      `json:"image"`
	Quantity int         `json:"quantity"`
}

// UpdateCartItemRequest represents update cart item request. Quantity is
// coerced: anything missing, non-numeric or below 1 becomes 1.
type UpdateCartItemRequest struct {
	Quantity interface{} `json:"quantity"`
}

// ApplyCouponRequest represents apply coupon request
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	store, ok := h.open(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    newCartResponse(store.Snapshot()),
	})
}

// GetCartCount handles GET /cart/count
func (h *CartHandler) GetCartCount(c *gin.Context) {
	store, ok := h.open(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart count retrieved successfully",
		"data":    gin.H{"count": store.Count()},
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.notify(c, notify.Error("Could not add this item to your cart."))
		invalidRequest(c, err)
		return
	}
	price, ok := cart.ParsePrice(req.Price)
	if !ok {
		h.notify(c, notify.Error("Could not add this item to your cart."))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
		return
	}

	store, ok := h.openUnlocked(c)
	if !ok {
		return
	}

	item := cart.LineItem{ID: req.ID, Name: req.Name, Price: price, Image: req.Image}
	if err := store.AddItem(c.Request.Context(), item, req.Quantity); err != nil {
		if errors.Is(err, cart.ErrInvalidItem) {
			h.notify(c, notify.Error("Could not add this item to your cart."))
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    newCartResponse(store.Snapshot()),
	})
}

// UpdateCartItem handles PUT /cart/items/:index
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	store, ok := h.openUnlocked(c)
	if !ok || !itemExists(c, store, index) {
		return
	}

	if err := store.UpdateQuantity(c.Request.Context(), index, cart.ParseQuantity(req.Quantity)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    newCartResponse(store.Snapshot()),
	})
}

// RemoveFromCart handles DELETE /cart/items/:index
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	store, ok := h.openUnlocked(c)
	if !ok || !itemExists(c, store, index) {
		return
	}

	if err := store.RemoveItem(c.Request.Context(), index); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    newCartResponse(store.Snapshot()),
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	store, ok := h.openUnlocked(c)
	if !ok {
		return
	}

	if err := store.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
		"data":    newCartResponse(store.Snapshot()),
	})
}

// ApplyCoupon handles POST /cart/coupon
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	store, ok := h.openUnlocked(c)
	if !ok {
		return
	}

	if _, err := store.ApplyCoupon(c.Request.Context(), req.Code); err != nil {
		if errors.Is(err, pricing.ErrInvalidCoupon) {
			h.notify(c, notify.Error("Invalid coupon code"))
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon applied successfully",
		"data":    newCartResponse(store.Snapshot()),
	})
}

// RemoveCoupon handles DELETE /cart/coupon
func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	store, ok := h.openUnlocked(c)
	if !ok {
		return
	}

	if err := store.RemoveCoupon(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon removed successfully",
		"data":    newCartResponse(store.Snapshot()),
	})
}

// GetLegacyCart handles GET /cart/legacy, the representation older pages read.
func (h *CartHandler) GetLegacyCart(c *gin.Context) {
	items, err := h.sync.ReadLegacy(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Legacy cart retrieved successfully",
		"data":    items,
	})
}

// PutLegacyCart handles PUT /cart/legacy. The write is reconciled into the
// canonical cart immediately.
func (h *CartHandler) PutLegacyCart(c *gin.Context) {
	var items []cartsync.LegacyItem
	if err := c.ShouldBindJSON(&items); err != nil {
		invalidRequest(c, err)
		return
	}

	store, ok := h.openUnlocked(c)
	if !ok {
		return
	}

	result, err := h.sync.WriteLegacy(c.Request.Context(), store.SessionID(), items)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Legacy cart stored successfully",
		"data": gin.H{
			"action": result.Action,
			"cart":   newCartResponse(store.Snapshot()),
		},
	})
}

func (h *CartHandler) open(c *gin.Context) (*cart.Store, bool) {
	store, err := h.carts.Open(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return store, true
}

// openUnlocked refuses edits while a checkout holds the cart.
func (h *CartHandler) openUnlocked(c *gin.Context) (*cart.Store, bool) {
	store, ok := h.open(c)
	if !ok {
		return nil, false
	}
	if store.Locked() {
		respondError(c, cart.ErrCartLocked)
		return nil, false
	}
	return store, true
}

func (h *CartHandler) notify(c *gin.Context, n notify.Notification) {
	if h.notifier != nil {
		h.notifier.Notify(middleware.GetSessionID(c), n)
	}
}

func itemExists(c *gin.Context, store *cart.Store, index int) bool {
	if index >= len(store.Items()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		return false
	}
	return true
}
