package wishlist

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyInWishlist is returned when the normalized product id is already saved.
	ErrAlreadyInWishlist = errors.New("item already exists in wishlist")
	// ErrItemNotFound is returned for an index outside the list.
	ErrItemNotFound = errors.New("wishlist item not found")
)

// Item is one saved product. Stored under the wishlistItems key.
type Item struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Price   float64   `json:"price"`
	Image   string    `json:"image,omitempty"`
	AddedAt time.Time `json:"addedAt"`
}

// Response represents a wishlist with items and summary
type Response struct {
	Items   []Item  `json:"items"`
	Count   int     `json:"count"`
	Summary Summary `json:"summary"`
}

// Summary provides summary information
type Summary struct {
	TotalItems    int    `json:"total_items"`
	TotalValue    string `json:"total_value"`
	AveragePrice  string `json:"average_price"`
	RecentlyAdded int    `json:"recently_added"` // Items added in last 7 days
}
