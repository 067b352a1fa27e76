package domain

import (
	"encoding/json"
	"strings"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	PaymentStatusPaid             = "paid"
)

// Metadata keys written onto the provider session at creation time.
const (
	MetaCustomerName  = "customerName"
	MetaCustomerEmail = "customerEmail"
	MetaCustomerPhone = "customerPhone"
	MetaDiscountCode  = "discountCode"
	MetaItems         = "items"
)

type CustomerDetails struct {
	Email string
	Name  string
	Phone string
}

// CheckoutSession is the provider-neutral projection of a hosted checkout
// session, populated from webhook events and session re-fetches.
type CheckoutSession struct {
	ID              string
	PaymentStatus   string
	AmountTotal     int64 // minor units
	CustomerEmail   string
	CustomerDetails CustomerDetails
	Metadata        map[string]string
}

type WebhookEvent struct {
	Type    string
	Session CheckoutSession
}

func firstNonEmpty(sources ...func() string) string {
	for _, src := range sources {
		if v := strings.TrimSpace(src()); v != "" {
			return v
		}
	}
	return ""
}

// ResolveCustomerEmail picks the customer email from the session pair with a
// fixed precedence. The same logical field is populated inconsistently by the
// provider depending on how the session was created; metadata is what this
// system wrote itself, so it outranks everything.
func ResolveCustomerEmail(event, full CheckoutSession) string {
	return firstNonEmpty(
		func() string { return event.Metadata[MetaCustomerEmail] },
		func() string { return event.CustomerEmail },
		func() string { return event.CustomerDetails.Email },
		func() string { return full.CustomerDetails.Email },
		func() string { return full.CustomerEmail },
	)
}

func ResolveCustomerName(event, full CheckoutSession) string {
	name := firstNonEmpty(
		func() string { return event.CustomerDetails.Name },
		func() string { return full.CustomerDetails.Name },
		func() string { return event.Metadata[MetaCustomerName] },
	)
	if name == "" {
		return "Valued Customer"
	}
	return name
}

func ResolveCustomerPhone(event, full CheckoutSession) string {
	phone := firstNonEmpty(
		func() string { return event.Metadata[MetaCustomerPhone] },
		func() string { return event.CustomerDetails.Phone },
		func() string { return full.CustomerDetails.Phone },
	)
	if phone == "" {
		return "N/A"
	}
	return phone
}

// ItemsFromMetadata decodes the JSON item copy stored on the session.
// Malformed metadata yields an empty list rather than an error; the email can
// still go out without an item breakdown.
func ItemsFromMetadata(raw string) []LineItem {
	if raw == "" {
		return nil
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
