package application

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeaviator/checkout-service/internal/checkout/domain"
)

const (
	subjectCustomerConfirmation = "Payment Confirmed - Trade Aviator"
	subjectFreePurchaseNotice   = "New Free Purchase - Trade Aviator"
	subjectConsultationNotice   = "New Consultation Request - Trade Aviator"
	subjectTestEmail            = "Test Email - Trade Aviator"

	supportEmail = "tradeaviatorbot@gmail.com"
)

type emailItem struct {
	Name  string
	Price string
}

func itemViews(items []domain.LineItem) []emailItem {
	out := make([]emailItem, 0, len(items))
	for _, it := range items {
		price := "FREE"
		if it.Price.IsPositive() {
			price = "£" + it.Price.StringFixed(2)
		}
		out = append(out, emailItem{Name: it.Name, Price: price})
	}
	return out
}

func emailDate(now time.Time) string {
	return now.Format("Monday, 2 January 2006")
}

var customerConfirmationTmpl = template.Must(template.New("customer").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background: #f5f5f5;">
  <div style="background: linear-gradient(135deg, #3A8BFF 0%, #56E0FF 100%); padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
    <h1 style="color: #FFFFFF; margin: 0; font-size: 28px;">Payment Confirmed!</h1>
  </div>
  <div style="background: #FFFFFF; padding: 30px; border-radius: 0 0 10px 10px;">
    <p style="color: #333; font-size: 16px;">Dear {{.Name}},</p>
    <p style="color: #333; font-size: 16px;">
      Thank you for your purchase! Your payment of <strong>£{{.Total}}</strong> has been successfully processed.
    </p>
    <div style="background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #3A8BFF;">
      <h2 style="color: #333; margin-top: 0; font-size: 20px;">Order Details</h2>
      <p style="color: #666; margin: 5px 0;"><strong>Order ID:</strong> {{.OrderID}}</p>
      <p style="color: #666; margin: 5px 0;"><strong>Date:</strong> {{.Date}}</p>
      {{if .Items}}
      <div style="margin-top: 15px;">
        <strong style="color: #333;">Items Purchased:</strong>
        <ul style="color: #666; margin: 10px 0; padding-left: 20px;">
          {{range .Items}}<li>{{.Name}} - {{.Price}}</li>{{end}}
        </ul>
      </div>
      {{end}}
    </div>
    <div style="background: #e8f5e9; padding: 15px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #4caf50;">
      <p style="color: #2e7d32; margin: 0; font-weight: bold;">&#10003; Your order is being processed</p>
      <p style="color: #2e7d32; margin: 5px 0 0 0; font-size: 14px;">One of our specialists will contact you within 24 hours with your access details and setup instructions.</p>
    </div>
    <p style="color: #333; font-size: 16px;">
      If you have any questions, contact us at <a href="mailto:{{.SupportEmail}}" style="color: #3A8BFF;">{{.SupportEmail}}</a>.
    </p>
    <p style="color: #666; font-size: 14px; margin-top: 30px; padding-top: 20px; border-top: 1px solid #e0e0e0;">
      Best regards,<br><strong>The Trade Aviator Team</strong>
    </p>
  </div>
</div>`))

type customerConfirmationData struct {
	Name         string
	OrderID      string
	Date         string
	Total        string
	Items        []emailItem
	SupportEmail string
}

func renderCustomerConfirmation(name, orderID string, total decimal.Decimal, items []domain.LineItem, now time.Time) (html, text string, err error) {
	data := customerConfirmationData{
		Name:         name,
		OrderID:      orderID,
		Date:         emailDate(now),
		Total:        total.StringFixed(2),
		Items:        itemViews(items),
		SupportEmail: supportEmail,
	}
	var buf bytes.Buffer
	if err := customerConfirmationTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Dear %s,\n\n", name)
	fmt.Fprintf(&sb, "Thank you for your purchase! Your payment of £%s has been successfully processed.\n\n", data.Total)
	fmt.Fprintf(&sb, "Order ID: %s\nDate: %s\n", orderID, data.Date)
	for _, it := range data.Items {
		fmt.Fprintf(&sb, "- %s - %s\n", it.Name, it.Price)
	}
	fmt.Fprintf(&sb, "\nOne of our specialists will contact you within 24 hours with your access details.\n\nThe Trade Aviator Team\n")
	return buf.String(), sb.String(), nil
}

var businessNoticeTmpl = template.Must(template.New("business").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #3A8BFF; margin-bottom: 20px;">{{.Heading}}</h2>
  <div style="background: #f5f5f5; padding: 20px; border-radius: 8px; margin-bottom: 20px;">
    {{range .Fields}}
    <p style="margin: 10px 0;"><strong style="color: #333;">{{.Name}}:</strong> <span style="color: #666;">{{.Value}}</span></p>
    {{end}}
    {{if .Items}}
    <p style="margin: 10px 0;"><strong style="color: #333;">Items:</strong></p>
    <ul style="margin: 10px 0; padding-left: 20px;">
      {{range .Items}}<li style="color: #666; margin: 5px 0;">{{.Name}} - {{.Price}}</li>{{end}}
    </ul>
    {{end}}
  </div>
  <p style="color: #666; font-size: 14px;">This is an automated notification from your Trade Aviator website.</p>
</div>`))

type noticeField struct {
	Name  string
	Value string
}

type businessNoticeData struct {
	Heading string
	Fields  []noticeField
	Items   []emailItem
}

func renderBusinessNotice(data businessNoticeData) (html, text string, err error) {
	var buf bytes.Buffer
	if err := businessNoticeTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", data.Heading)
	for _, f := range data.Fields {
		fmt.Fprintf(&sb, "%s: %s\n", f.Name, f.Value)
	}
	for _, it := range data.Items {
		fmt.Fprintf(&sb, "- %s - %s\n", it.Name, it.Price)
	}
	return buf.String(), sb.String(), nil
}

var testEmailTmpl = template.Must(template.New("test").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #3A8BFF;">Test Email</h2>
  <p>This is a test email to verify that email sending is working correctly.</p>
  <p>If you received this, your email configuration is working!</p>
  <p style="color: #666; font-size: 12px; margin-top: 30px;">Sent at: {{.SentAt}}</p>
</div>`))

func renderTestEmail(now time.Time) (html, text string, err error) {
	var buf bytes.Buffer
	if err := testEmailTmpl.Execute(&buf, struct{ SentAt string }{SentAt: now.Format(time.RFC1123)}); err != nil {
		return "", "", err
	}
	text = "This is a test email to verify that email sending is working correctly.\nSent at: " + now.Format(time.RFC1123) + "\n"
	return buf.String(), text, nil
}
