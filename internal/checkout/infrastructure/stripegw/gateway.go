package stripegw

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/tradeaviator/checkout-service/internal/checkout/application"
	"github.com/tradeaviator/checkout-service/internal/checkout/domain"
)

// Gateway talks to Stripe's hosted-checkout API. Credential checks happen on
// every call rather than at construction so a misconfigured process still
// serves the endpoints that don't need Stripe.
type Gateway struct {
	log       *slog.Logger
	secretKey string
	api       *client.API
}

func New(log *slog.Logger, secretKey string) *Gateway {
	g := &Gateway{log: log, secretKey: secretKey}
	if secretKey != "" {
		api := &client.API{}
		api.Init(secretKey, nil)
		g.api = api
	}
	return g
}

func (g *Gateway) configured() error {
	if g.secretKey == "" {
		return &application.ConfigError{Reason: "Payment server configuration error. STRIPE_SECRET_KEY is not set."}
	}
	if !strings.HasPrefix(g.secretKey, "sk_") {
		return &application.ConfigError{Reason: "Invalid Stripe configuration. Please check your API keys."}
	}
	return nil
}

func (g *Gateway) CreateSession(ctx context.Context, p application.SessionParams) (application.SessionRef, error) {
	if err := g.configured(); err != nil {
		return application.SessionRef{}, err
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes:  stripe.StringSlice([]string{"card"}),
		LineItems:           buildLineItems(p.Items),
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:          stripe.String(p.SuccessURL),
		CancelURL:           stripe.String(p.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return application.SessionRef{}, providerError(err)
	}
	return application.SessionRef{ID: sess.ID, URL: sess.URL}, nil
}

func (g *Gateway) FetchSession(ctx context.Context, id string) (domain.CheckoutSession, error) {
	if err := g.configured(); err != nil {
		return domain.CheckoutSession{}, err
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	sess, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return domain.CheckoutSession{}, providerError(err)
	}
	return fromStripe(sess), nil
}

func buildLineItems(items []domain.LineItem) []*stripe.CheckoutSessionLineItemParams {
	out := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, it := range items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(it.Name),
		}
		if len(it.Features) > 0 {
			product.Description = stripe.String(strings.Join(it.Features, ", "))
		}
		out = append(out, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyGBP)),
				ProductData: product,
				UnitAmount:  stripe.Int64(domain.MinorUnits(it.Price)),
			},
			Quantity: stripe.Int64(1),
		})
	}
	return out
}

func fromStripe(s *stripe.CheckoutSession) domain.CheckoutSession {
	out := domain.CheckoutSession{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if s.CustomerDetails != nil {
		out.CustomerDetails = domain.CustomerDetails{
			Email: s.CustomerDetails.Email,
			Name:  s.CustomerDetails.Name,
			Phone: s.CustomerDetails.Phone,
		}
	}
	return out
}

// providerError surfaces Stripe's own message instead of the SDK's JSON dump.
func providerError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return errors.New(se.Msg)
	}
	return err
}
