package stripegw

import (
	"encoding/json"
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/tradeaviator/checkout-service/internal/checkout/domain"
)

// EventVerifier turns raw webhook payloads into domain events. With a signing
// secret it verifies the Stripe signature; without one it accepts events
// unverified, which is only acceptable for local development.
type EventVerifier struct {
	log           *slog.Logger
	signingSecret string
}

func NewEventVerifier(log *slog.Logger, signingSecret string) *EventVerifier {
	if signingSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, webhook signatures will NOT be verified (development only)")
	}
	return &EventVerifier{log: log, signingSecret: signingSecret}
}

func (v *EventVerifier) Parse(payload []byte, sigHeader string) (domain.WebhookEvent, error) {
	if v.signingSecret != "" {
		ev, err := webhook.ConstructEvent(payload, sigHeader, v.signingSecret)
		if err != nil {
			return domain.WebhookEvent{}, fmt.Errorf("webhook signature verification failed: %w", err)
		}
		out := domain.WebhookEvent{Type: string(ev.Type)}
		if out.Type == domain.EventCheckoutSessionCompleted {
			var sess stripe.CheckoutSession
			if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
				return domain.WebhookEvent{}, fmt.Errorf("invalid webhook event: %w", err)
			}
			out.Session = fromStripe(&sess)
		}
		return out, nil
	}

	v.log.Warn("accepting unverified webhook event (development mode)")
	var raw struct {
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("invalid webhook event: %w", err)
	}
	out := domain.WebhookEvent{Type: raw.Type}
	if raw.Type == domain.EventCheckoutSessionCompleted && len(raw.Data.Object) > 0 {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Object, &sess); err != nil {
			return domain.WebhookEvent{}, fmt.Errorf("invalid webhook event: %w", err)
		}
		out.Session = fromStripe(&sess)
	}
	return out, nil
}
