// Package pricing derives cart totals. Amounts are computed with decimal
// arithmetic and only rounded when formatted or converted to minor units.
package pricing

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidCoupon is returned for codes outside the allow-list.
var ErrInvalidCoupon = errors.New("invalid coupon code")

// allowList maps upper-case coupon codes to their discount rate.
var allowList = map[string]decimal.Decimal{
	"VAARAHI": decimal.RequireFromString("0.10"),
}

// Line is the pricing view of one cart line.
type Line struct {
	Price    float64
	Quantity int
}

// Coupon is an applied discount code.
type Coupon struct {
	Code         string          `json:"code"`
	DiscountRate decimal.Decimal `json:"discountRate"`
}

// Totals is always derived, never stored.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Coupon   string          `json:"coupon,omitempty"`
}

// LookupCoupon matches code case-insensitively against the allow-list.
func LookupCoupon(code string) (Coupon, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	rate, ok := allowList[normalized]
	if !ok {
		return Coupon{}, ErrInvalidCoupon
	}
	return Coupon{Code: normalized, DiscountRate: rate}, nil
}

// Subtotal sums price times quantity. Lines with a non-finite price or a
// negative quantity contribute zero.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if math.IsNaN(l.Price) || math.IsInf(l.Price, 0) || l.Quantity < 0 {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Calculate returns subtotal, discount and total. The coupon is re-checked
// against the allow-list so a stale persisted code never discounts.
func Calculate(lines []Line, coupon *Coupon) Totals {
	subtotal := Subtotal(lines)
	totals := Totals{
		Subtotal: subtotal,
		Discount: decimal.Zero,
		Total:    subtotal,
	}

	if coupon == nil {
		return totals
	}
	active, err := LookupCoupon(coupon.Code)
	if err != nil {
		return totals
	}

	totals.Coupon = active.Code
	totals.Discount = subtotal.Mul(active.DiscountRate)
	totals.Total = subtotal.Sub(totals.Discount)
	return totals
}

// Format renders an amount with exactly two decimals, rounding half away from zero.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// MinorUnits converts an amount to paise for payment providers.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// FromMinorUnits is the inverse of MinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FormatINR renders an amount with the rupee sign and Indian digit grouping,
// e.g. ₹12,34,567.89.
func FormatINR(amount decimal.Decimal) string {
	fixed := Format(amount.Abs())
	integer, fraction, _ := strings.Cut(fixed, ".")

	sign := ""
	if amount.Round(2).IsNegative() {
		sign = "-"
	}
	return sign + "₹" + groupIndian(integer) + "." + fraction
}

// groupIndian places a comma before the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}
