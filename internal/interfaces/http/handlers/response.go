package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/domain/checkout"
	"github.com/vaarahi/storefront/internal/domain/payment"
	"github.com/vaarahi/storefront/internal/domain/pricing"
	"github.com/vaarahi/storefront/internal/domain/user"
	"github.com/vaarahi/storefront/internal/domain/wishlist"
	"github.com/vaarahi/storefront/internal/pkg/auth"
)

// respondError maps domain errors onto status codes and the
// {"error": ...} body every handler uses.
func respondError(c *gin.Context, err error) {
	var (
		checkoutErr *checkout.ValidationError
		userErr     *user.ValidationError
		providerErr *payment.ProviderError
	)

	switch {
	case errors.As(err, &checkoutErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": checkoutErr.Message, "field": checkoutErr.Field})
	case errors.As(err, &userErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": userErr.Message, "field": userErr.Field})
	case errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, pricing.ErrInvalidCoupon),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, payment.ErrUnknownProvider),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, user.ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, user.ErrNotLoggedIn),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, user.ErrInvalidPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, payment.ErrSignatureMismatch):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment verification failed"})
	case errors.Is(err, checkout.ErrNoActiveSession),
		errors.Is(err, checkout.ErrOrderNotFound),
		errors.Is(err, wishlist.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrCheckoutInProgress),
		errors.Is(err, checkout.ErrAlreadySettled),
		errors.Is(err, checkout.ErrSessionMismatch),
		errors.Is(err, user.ErrUserExists),
		errors.Is(err, wishlist.ErrAlreadyInWishlist):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrCartLocked):
		c.JSON(http.StatusLocked, gin.H{"error": "Cart is locked while a payment is in progress"})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Payment service unavailable",
			"retryable": providerErr.Retryable,
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func invalidRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}

// indexParam reads a non-negative :index path parameter.
func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item index"})
		return 0, false
	}
	return index, true
}
