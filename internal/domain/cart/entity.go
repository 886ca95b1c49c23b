// internal/domain/cart/entity.go
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vaarahi/storefront/internal/domain/pricing"
)

var (
	// ErrInvalidItem is returned when an item cannot enter the cart.
	ErrInvalidItem = errors.New("invalid cart item")
	// ErrCartLocked is returned by callers that refuse edits while a checkout holds the cart.
	ErrCartLocked = errors.New("cart is locked for checkout")
)

// Product ids that legitimately contain a hyphen.
var compoundIDs = map[string]bool{
	"baby-dress":    true,
	"comfort-chair": true,
	"short-table":   true,
}

// LineItem is one product line in the cart.
type LineItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Snapshot is a read-only view of a session's cart.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Items     []LineItem      `json:"items"`
	Count     int             `json:"count"`
	Coupon    *pricing.Coupon `json:"coupon,omitempty"`
	Totals    pricing.Totals  `json:"totals"`
	Locked    bool            `json:"locked"`
}

// NormalizeID maps a product id to the identity used for line merging.
// Variant ids such as "chair-blue" collapse to "chair" unless the id is one
// of the known compound product ids.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.Contains(id, "-") && !compoundIDs[id] {
		head, _, _ := strings.Cut(id, "-")
		return strings.ToLower(head)
	}
	return strings.ToLower(id)
}

// ValidateItem checks the fields AddItem depends on.
func ValidateItem(item LineItem) error {
	if NormalizeID(item.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	if math.IsNaN(item.Price) || math.IsInf(item.Price, 0) {
		return fmt.Errorf("%w: price must be a finite number", ErrInvalidItem)
	}
	if item.Price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidItem)
	}
	return nil
}

// ParsePrice accepts numbers and currency strings like "$98.85", "₹1,299" or
// "Rs. 99". Negative amounts are rejected.
func ParsePrice(v interface{}) (float64, bool) {
	switch p := v.(type) {
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return 0, false
		}
		return p, true
	case string:
		amount := strings.TrimFunc(stripCurrency(p), unicode.IsSpace)
		amount = strings.ReplaceAll(amount, ",", "")
		if amount == "" || strings.ContainsAny(amount, "-+") {
			return 0, false
		}
		f, err := strconv.ParseFloat(amount, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// stripCurrency drops a leading currency symbol or word ("$", "₹", "Rs.",
// "INR") and a trailing currency code.
func stripCurrency(s string) string {
	s = strings.TrimSpace(s)
	rest := strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
	})
	// the dot of an abbreviation such as "Rs." is not a decimal point
	if prefix := strings.TrimSpace(s[:len(s)-len(rest)]); prefix != "" {
		last, _ := utf8.DecodeLastRuneInString(prefix)
		if unicode.IsLetter(last) {
			rest = strings.TrimPrefix(rest, ".")
		}
	}
	return strings.TrimRightFunc(rest, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsSpace(r)
	})
}

// ParseQuantity coerces a stored quantity, falling back to 1.
func ParseQuantity(v interface{}) int {
	var q int
	switch n := v.(type) {
	case float64:
		if !math.IsNaN(n) && !math.IsInf(n, 0) && n < math.MaxInt32 {
			q = int(n)
		}
	case string:
		q, _ = strconv.Atoi(strings.TrimSpace(n))
	}
	if q < 1 {
		return 1
	}
	return q
}

func stringField(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

// DecodeItems parses a stored cart array leniently. Entries that are not
// objects or lack an id or a usable price are dropped and counted in
// dropped. A payload that is not a JSON array is an error.
func DecodeItems(raw []byte) (items []LineItem, dropped int, err error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, err
	}

	items = make([]LineItem, 0, len(entries))
	for _, entry := range entries {
		var fields map[string]interface{}
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			dropped++
			continue
		}

		id := stringField(fields["id"])
		if id == "" {
			id = stringField(fields["productId"])
		}
		price, ok := ParsePrice(fields["price"])
		if id == "" || !ok || price < 0 {
			dropped++
			continue
		}

		name, _ := fields["name"].(string)
		image, _ := fields["image"].(string)
		items = append(items, LineItem{
			ID:       id,
			Name:     name,
			Price:    price,
			Image:    image,
			Quantity: ParseQuantity(fields["quantity"]),
		})
	}
	return items, dropped, nil
}

// Consolidate merges lines sharing a normalized id, summing quantities and
// keeping the first line's descriptive fields. Order of first appearance is kept.
func Consolidate(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		key := NormalizeID(item.ID)
		if i, ok := index[key]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[key] = len(out)
		item.ID = key
		item.ProductID = key
		out = append(out, item)
	}
	return out
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

func pricingLines(items []LineItem) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		lines[i] = pricing.Line{Price: item.Price, Quantity: item.Quantity}
	}
	return lines
}
