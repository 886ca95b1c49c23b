// internal/interfaces/http/handlers/wishlist.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/domain/wishlist"
	"github.com/vaarahi/storefront/internal/interfaces/http/middleware"
)

// WishlistHandler handles wishlist endpoints
type WishlistHandler struct {
	wishlistService *wishlist.Service
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(wishlistService *wishlist.Service) *WishlistHandler {
	return &WishlistHandler{wishlistService: wishlistService}
}

// AddToWishlistRequest represents add to wishlist request
type AddToWishlistRequest struct {
	ID    string      `json:"id" binding:"required"`
	Name  string      `json:"name"`
	Price interface{} `json:"price"`
	Image string      `json:"image"`
}

// MoveToCartRequest represents move to cart request
type MoveToCartRequest struct {
	Quantity int `json:"quantity"`
}

// GetWishlist handles GET /wishlist
func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	response, err := h.wishlistService.GetWishlist(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist retrieved successfully",
		"data":    response,
	})
}

// GetWishlistCount handles GET /wishlist/count
func (h *WishlistHandler) GetWishlistCount(c *gin.Context) {
	count, err := h.wishlistService.GetWishlistCount(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist count retrieved successfully",
		"data":    gin.H{"count": count},
	})
}

// CheckWishlist handles GET /wishlist/check/:product_id
func (h *WishlistHandler) CheckWishlist(c *gin.Context) {
	productID := c.Param("product_id")
	inWishlist, err := h.wishlistService.IsInWishlist(c.Request.Context(), middleware.GetSessionID(c), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist status retrieved successfully",
		"data": gin.H{
			"product_id":  productID,
			"in_wishlist": inWishlist,
		},
	})
}

// AddToWishlist handles POST /wishlist
func (h *WishlistHandler) AddToWishlist(c *gin.Context) {
	var req AddToWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}
	price, ok := cart.ParsePrice(req.Price)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
		return
	}

	item, err := h.wishlistService.AddToWishlist(c.Request.Context(), middleware.GetSessionID(c), wishlist.Item{
		ID:    req.ID,
		Name:  req.Name,
		Price: price,
		Image: req.Image,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Item added to wishlist successfully",
		"data":    item,
	})
}

// RemoveFromWishlist handles DELETE /wishlist/:index
func (h *WishlistHandler) RemoveFromWishlist(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	item, err := h.wishlistService.RemoveFromWishlist(c.Request.Context(), middleware.GetSessionID(c), index)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from wishlist successfully",
		"data":    item,
	})
}

// ClearWishlist handles DELETE /wishlist
func (h *WishlistHandler) ClearWishlist(c *gin.Context) {
	if err := h.wishlistService.ClearWishlist(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist cleared successfully",
	})
}

// MoveToCart handles POST /wishlist/:index/move-to-cart
func (h *WishlistHandler) MoveToCart(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	var req MoveToCartRequest
	// the body is optional; quantity defaults to one
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	item, err := h.wishlistService.MoveToCart(c.Request.Context(), middleware.GetSessionID(c), index, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item moved to cart successfully",
		"data":    item,
	})
}
