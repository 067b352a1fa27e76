package stripegw

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeaviator/checkout-service/internal/checkout/application"
	"github.com/tradeaviator/checkout-service/internal/checkout/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateSessionWithoutSecretKey(t *testing.T) {
	g := New(discardLogger(), "")

	_, err := g.CreateSession(context.Background(), application.SessionParams{})
	var ce *application.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "STRIPE_SECRET_KEY is not set")
}

func TestCreateSessionWithMalformedKey(t *testing.T) {
	g := New(discardLogger(), "pk_test_wrong_kind_of_key")

	_, err := g.FetchSession(context.Background(), "cs_1")
	var ce *application.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "Invalid Stripe configuration")
}

func TestBuildLineItems(t *testing.T) {
	items := []domain.LineItem{
		{
			ID:       domain.FlagshipID,
			Name:     domain.FlagshipName,
			Price:    decimal.NewFromInt(199),
			Features: []string{"Lifetime access", "Signals"},
		},
		{
			ID:    "addon",
			Name:  "Add-on",
			Price: decimal.NewFromFloat(19.99),
		},
	}

	out := buildLineItems(items)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, int64(19900), *first.PriceData.UnitAmount)
	assert.Equal(t, "gbp", *first.PriceData.Currency)
	assert.Equal(t, domain.FlagshipName, *first.PriceData.ProductData.Name)
	assert.Equal(t, "Lifetime access, Signals", *first.PriceData.ProductData.Description)
	assert.Equal(t, int64(1), *first.Quantity)

	second := out[1]
	assert.Equal(t, int64(1999), *second.PriceData.UnitAmount)
	assert.Nil(t, second.PriceData.ProductData.Description, "no description without features")
}

func TestFromStripeMapsCustomerDetails(t *testing.T) {
	sess := &stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   19900,
		CustomerEmail: "top@example.com",
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
			Email: "details@example.com",
			Name:  "Buyer",
			Phone: "+44 1234",
		},
		Metadata: map[string]string{domain.MetaCustomerEmail: "meta@example.com"},
	}

	out := fromStripe(sess)
	assert.Equal(t, "cs_1", out.ID)
	assert.Equal(t, domain.PaymentStatusPaid, out.PaymentStatus)
	assert.Equal(t, int64(19900), out.AmountTotal)
	assert.Equal(t, "details@example.com", out.CustomerDetails.Email)
	assert.Equal(t, "meta@example.com", out.Metadata[domain.MetaCustomerEmail])
}

func TestProviderErrorUnwrapsStripeMessage(t *testing.T) {
	err := providerError(&stripe.Error{Msg: "No such checkout session"})
	assert.EqualError(t, err, "No such checkout session")

	plain := errors.New("dial tcp: timeout")
	assert.Same(t, plain, providerError(plain))
}
