package application

import (
	"context"
	"errors"

	"github.com/tradeaviator/checkout-service/internal/checkout/domain"
)

type SessionParams struct {
	Items         []domain.LineItem
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type SessionRef struct {
	ID  string
	URL string
}

type PaymentGateway interface {
	CreateSession(ctx context.Context, p SessionParams) (SessionRef, error)
	FetchSession(ctx context.Context, id string) (domain.CheckoutSession, error)
}

type EmailMessage struct {
	FromName string
	From     string
	To       string
	Subject  string
	HTML     string
	Text     string
}

type DeliveryState int

const (
	DeliveryFailed DeliveryState = iota
	DeliveryDelivered
	DeliveryInconclusive
)

// Delivery is the three-way outcome of an email send. The provider's success
// signal is ambiguous: a call can complete without an error yet without a
// delivery id. That case is Inconclusive and is never treated as delivered.
type Delivery struct {
	State  DeliveryState
	ID     string
	Reason string
}

func Delivered(id string) Delivery {
	return Delivery{State: DeliveryDelivered, ID: id}
}

func Failed(reason string) Delivery {
	return Delivery{State: DeliveryFailed, Reason: reason}
}

func Inconclusive(reason string) Delivery {
	return Delivery{State: DeliveryInconclusive, Reason: reason}
}

type EmailSender interface {
	Configured() bool
	Send(ctx context.Context, m EmailMessage) Delivery
}

// ConfirmationMarker dedupes the customer confirmation between the webhook
// and the client-side fallback. Optional; without one, delivery stays
// at-least-once.
type ConfirmationMarker interface {
	Claim(ctx context.Context, sessionID string) (bool, error)
	Release(ctx context.Context, sessionID string) error
}

// ConfigError marks missing or malformed provider credentials. Handlers map
// it to a 5xx before any network call is attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return e.Reason }

var (
	ErrNoItems          = errors.New("items are required")
	ErrInvalidPrice     = errors.New("item prices must be non-negative")
	ErrMissingCustomer  = errors.New("customer email and name are required")
	ErrMissingFields    = errors.New("all fields are required")
	ErrMissingSessionID = errors.New("session ID is required")
	ErrNotPaid          = errors.New("payment not completed")
	ErrNoCustomerEmail  = errors.New("customer email not found")
)
