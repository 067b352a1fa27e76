package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is never persisted here; the payment provider's session (with the
// metadata written at creation time) is the durable record. Free orders get a
// synthesized id since no session exists for them.
type Order struct {
	OrderID       string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
	Items         []LineItem
	TotalAmount   decimal.Decimal
	DiscountCode  string
}

func NewFreeOrderID(now time.Time) string {
	return fmt.Sprintf("FREE-%d", now.UnixMilli())
}
