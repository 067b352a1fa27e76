package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/tradeaviator/checkout-service/internal/checkout/application"
)

// SendGrid implements the EmailSender port. The API's delivery id is the
// X-Message-Id response header; a 2xx without it is treated as inconclusive
// rather than delivered.
type SendGrid struct {
	log    *slog.Logger
	apiKey string
}

func NewSendGrid(log *slog.Logger, apiKey string) *SendGrid {
	return &SendGrid{log: log, apiKey: apiKey}
}

func (c *SendGrid) Configured() bool {
	return c.apiKey != ""
}

func (c *SendGrid) Send(ctx context.Context, m application.EmailMessage) application.Delivery {
	if c.apiKey == "" {
		return application.Failed("email service not configured: SENDGRID_API_KEY is not set")
	}

	from := sgmail.NewEmail(m.FromName, m.From)
	to := sgmail.NewEmail("", m.To)
	msg := sgmail.NewSingleEmail(from, m.Subject, to, m.Text, m.HTML)

	client := sendgrid.NewSendClient(c.apiKey)
	resp, err := client.SendWithContext(ctx, msg)
	if err != nil {
		c.log.Error("sendgrid send error", "to", m.To, "subject", m.Subject, "err", err)
		return application.Failed(err.Error())
	}

	d := classify(resp.StatusCode, resp.Body, resp.Headers)
	switch d.State {
	case application.DeliveryDelivered:
		c.log.Info("mail sent", "to", m.To, "subject", m.Subject, "status", resp.StatusCode, "message_id", d.ID)
	default:
		c.log.Error("mail not delivered", "to", m.To, "subject", m.Subject, "status", resp.StatusCode, "reason", d.Reason)
	}
	return d
}

func classify(status int, body string, headers map[string][]string) application.Delivery {
	if status >= 400 {
		if status == http.StatusForbidden ||
			strings.Contains(body, "verified Sender Identity") ||
			strings.Contains(strings.ToLower(body), "verify a domain") {
			return application.Failed("Domain verification required. Verify your sending domain with the email provider and update FROM_EMAIL to use an address on that domain.")
		}
		return application.Failed(fmt.Sprintf("email provider rejected the message: status=%d body=%s", status, body))
	}
	if id := http.Header(headers).Get("X-Message-Id"); id != "" {
		return application.Delivered(id)
	}
	return application.Inconclusive("unexpected response from email provider: accepted without a message id")
}
