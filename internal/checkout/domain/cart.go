package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Flagship product identifiers. The discount codes only ever zero this item.
const (
	FlagshipID   = "trade-aviator"
	FlagshipName = "TRADE AVIATOR ACCESS"
)

var defaultFlagshipPrice = decimal.NewFromInt(199)

var validDiscountCodes = map[string]struct{}{
	"NZ57":   {},
	"FREE26": {},
	"TA26":   {},
}

func init() {
	// Prices go over the wire as JSON numbers, matching the browser cart.
	decimal.MarshalJSONWithoutQuotes = true
}

type LineItem struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	Features      []string         `json:"features,omitempty"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
}

func (i LineItem) IsFlagship() bool {
	return i.ID == FlagshipID || i.Name == FlagshipName
}

func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidDiscountCode(code string) bool {
	_, ok := validDiscountCodes[NormalizeDiscountCode(code)]
	return ok
}

// ApplyDiscount zeroes the flagship item and stashes its previous price.
// An invalid code leaves the cart untouched and reports false; that is user
// input to surface, not a fault. Re-applying a valid code is a no-op beyond
// the first application.
func ApplyDiscount(code string, items []LineItem) (bool, []LineItem) {
	if !ValidDiscountCode(code) {
		return false, items
	}
	out := make([]LineItem, len(items))
	for n, it := range items {
		if it.IsFlagship() {
			if it.OriginalPrice == nil {
				prev := it.Price
				it.OriginalPrice = &prev
			}
			it.Price = decimal.Zero
		}
		out[n] = it
	}
	return true, out
}

// RemoveDiscount restores the flagship item's stashed price, falling back to
// the list price when no original was recorded.
func RemoveDiscount(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for n, it := range items {
		if it.IsFlagship() {
			if it.OriginalPrice != nil {
				it.Price = *it.OriginalPrice
			} else {
				it.Price = defaultFlagshipPrice
			}
			it.OriginalPrice = nil
		}
		out[n] = it
	}
	return out
}

func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}

// MinorUnits converts a major-unit amount to pence.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
