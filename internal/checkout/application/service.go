package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeaviator/checkout-service/internal/checkout/domain"
)

const emailConfigMissing = "Email configuration missing"

type Settings struct {
	FromEmail         string
	FromName          string
	ConsultationEmail string
	BaseURL           string
}

type Service struct {
	log      *slog.Logger
	gateway  PaymentGateway
	mailer   EmailSender
	marker   ConfirmationMarker // nil disables confirmation dedupe
	settings Settings
	now      func() time.Time
}

func NewService(log *slog.Logger, gateway PaymentGateway, mailer EmailSender, marker ConfirmationMarker, settings Settings) *Service {
	return &Service{
		log:      log,
		gateway:  gateway,
		mailer:   mailer,
		marker:   marker,
		settings: settings,
		now:      time.Now,
	}
}

func (s *Service) emailConfigured() bool {
	return s.mailer.Configured() && s.settings.FromEmail != ""
}

type CreateSessionRequest struct {
	Items         []domain.LineItem `json:"items"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerName  string            `json:"customerName"`
	CustomerPhone string            `json:"customerPhone"`
	DiscountCode  string            `json:"discountCode"`
}

type SessionResult struct {
	IsFree        bool
	SessionID     string
	URL           string
	Items         []domain.LineItem
	CustomerEmail string
	CustomerName  string
}

// CreateSession asks the payment provider for a hosted checkout session, or
// reports a free order when the cart total is zero. The provider does not
// accept zero-amount sessions; the free branch is a valid outcome, not an
// error, and makes no external call.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (SessionResult, error) {
	if len(req.Items) == 0 {
		return SessionResult{}, ErrNoItems
	}
	for _, it := range req.Items {
		if it.Price.IsNegative() {
			return SessionResult{}, ErrInvalidPrice
		}
	}

	total := domain.Total(req.Items)
	if !total.IsPositive() {
		s.log.Info("free purchase, skipping hosted checkout",
			"customer", req.CustomerEmail, "items", len(req.Items))
		return SessionResult{
			IsFree:        true,
			Items:         req.Items,
			CustomerEmail: req.CustomerEmail,
			CustomerName:  req.CustomerName,
		}, nil
	}

	// The metadata blob is the durable order record; nothing else persists it.
	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return SessionResult{}, err
	}

	ref, err := s.gateway.CreateSession(ctx, SessionParams{
		Items:         req.Items,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    s.settings.BaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.settings.BaseURL + "/payment",
		Metadata: map[string]string{
			domain.MetaCustomerName:  req.CustomerName,
			domain.MetaCustomerEmail: req.CustomerEmail,
			domain.MetaCustomerPhone: req.CustomerPhone,
			domain.MetaDiscountCode:  req.DiscountCode,
			domain.MetaItems:         string(itemsJSON),
		},
	})
	if err != nil {
		return SessionResult{}, err
	}

	s.log.Info("checkout session created",
		"session_id", ref.ID,
		"customer", req.CustomerEmail,
		"total_minor", domain.MinorUnits(total),
		"has_discount", req.DiscountCode != "")
	return SessionResult{SessionID: ref.ID, URL: ref.URL}, nil
}

type FreePurchaseRequest struct {
	Items         []domain.LineItem `json:"items"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerName  string            `json:"customerName"`
	CustomerPhone string            `json:"customerPhone"`
	DiscountCode  string            `json:"discountCode"`
}

type DebugInfo struct {
	HasAPIKey      bool   `json:"hasApiKey"`
	HasFromEmail   bool   `json:"hasFromEmail"`
	CustomerEmail  string `json:"customerEmail"`
	EmailAttempted bool   `json:"emailAttempted"`
	FinalEmailSent bool   `json:"finalEmailSent"`
}

type FreePurchaseResult struct {
	OrderID     string
	TotalAmount decimal.Decimal
	EmailSent   bool
	EmailID     string
	EmailError  string
	Debug       DebugInfo
}

// ProcessFreePurchase places a zero-total order: no provider session, just
// the two confirmation emails sent synchronously. Email failure is reported
// in the result, never as an error; the order itself still counts as placed.
func (s *Service) ProcessFreePurchase(ctx context.Context, req FreePurchaseRequest) (FreePurchaseResult, error) {
	if req.CustomerEmail == "" || req.CustomerName == "" {
		return FreePurchaseResult{}, ErrMissingCustomer
	}

	total := domain.Total(req.Items)
	orderID := domain.NewFreeOrderID(s.now())
	log := s.log.With("order_id", orderID)
	log.Info("processing free purchase",
		"customer", req.CustomerEmail, "items", len(req.Items), "discount", req.DiscountCode)

	var (
		sent     bool
		emailID  string
		emailErr string
	)
	if s.emailConfigured() {
		d := s.sendCustomerEmail(ctx, req.CustomerEmail, req.CustomerName, orderID, total, req.Items)
		switch d.State {
		case DeliveryDelivered:
			sent, emailID = true, d.ID
			log.Info("free purchase confirmation sent", "email_id", d.ID, "to", req.CustomerEmail)
		case DeliveryFailed:
			emailErr = d.Reason
			log.Error("free purchase confirmation failed", "to", req.CustomerEmail, "reason", d.Reason)
		case DeliveryInconclusive:
			emailErr = d.Reason
			log.Error("free purchase confirmation inconclusive", "to", req.CustomerEmail, "reason", d.Reason)
		}
	} else {
		emailErr = emailConfigMissing
		log.Warn("free purchase confirmation skipped, email not configured")
	}

	// Business notification is its own failure boundary; nothing below may
	// touch sent/emailID/emailErr.
	s.notifyFreePurchase(ctx, log, req, orderID)

	// Last line of defense: an error always means not sent.
	if emailErr != "" {
		sent = false
	}

	return FreePurchaseResult{
		OrderID:     orderID,
		TotalAmount: total,
		EmailSent:   sent,
		EmailID:     emailID,
		EmailError:  emailErr,
		Debug: DebugInfo{
			HasAPIKey:      s.mailer.Configured(),
			HasFromEmail:   s.settings.FromEmail != "",
			CustomerEmail:  req.CustomerEmail,
			EmailAttempted: emailErr == "" || sent,
			FinalEmailSent: sent,
		},
	}, nil
}

func (s *Service) sendCustomerEmail(ctx context.Context, to, name, orderID string, total decimal.Decimal, items []domain.LineItem) Delivery {
	html, text, err := renderCustomerConfirmation(name, orderID, total, items, s.now())
	if err != nil {
		return Failed(fmt.Sprintf("render confirmation email: %v", err))
	}
	return s.mailer.Send(ctx, EmailMessage{
		FromName: s.settings.FromName,
		From:     s.settings.FromEmail,
		To:       to,
		Subject:  subjectCustomerConfirmation,
		HTML:     html,
		Text:     text,
	})
}

func (s *Service) notifyFreePurchase(ctx context.Context, log *slog.Logger, req FreePurchaseRequest, orderID string) {
	if !s.mailer.Configured() || s.settings.ConsultationEmail == "" {
		log.Warn("business notification skipped, CONSULTATION_EMAIL not set")
		return
	}
	fields := []noticeField{
		{"Customer Name", req.CustomerName},
		{"Customer Email", req.CustomerEmail},
		{"Customer Phone", orDefault(req.CustomerPhone, "N/A")},
		{"Amount", "FREE (Discount Code Applied)"},
		{"Order ID", orderID},
		{"Purchase Date", s.now().Format(time.RFC1123)},
	}
	if req.DiscountCode != "" {
		fields = append(fields, noticeField{"Discount Code Used", req.DiscountCode})
	}
	s.sendBusinessNotice(ctx, log, subjectFreePurchaseNotice, businessNoticeData{
		Heading: "New Free Purchase",
		Fields:  fields,
		Items:   itemViews(req.Items),
	})
}

func (s *Service) sendBusinessNotice(ctx context.Context, log *slog.Logger, subject string, data businessNoticeData) {
	html, text, err := renderBusinessNotice(data)
	if err != nil {
		log.Error("render business notification failed", "err", err)
		return
	}
	d := s.mailer.Send(ctx, EmailMessage{
		FromName: s.settings.FromName,
		From:     s.settings.FromEmail,
		To:       s.settings.ConsultationEmail,
		Subject:  subject,
		HTML:     html,
		Text:     text,
	})
	if d.State == DeliveryDelivered {
		log.Info("business notification sent", "email_id", d.ID)
	} else {
		log.Error("business notification not delivered", "reason", d.Reason)
	}
}

// HandleCompletedSession reacts to the provider's session-completion event.
// Payment already succeeded; no email outcome may fail the webhook, so every
// send is isolated and only logged.
func (s *Service) HandleCompletedSession(ctx context.Context, event domain.CheckoutSession) {
	log := s.log.With("session_id", event.ID)

	full, err := s.gateway.FetchSession(ctx, event.ID)
	if err != nil {
		// Continue with the event payload alone; it carries the metadata.
		log.Error("session refetch failed", "err", err)
		full = domain.CheckoutSession{}
	}

	email := domain.ResolveCustomerEmail(event, full)
	name := domain.ResolveCustomerName(event, full)
	phone := domain.ResolveCustomerPhone(event, full)
	items := domain.ItemsFromMetadata(event.Metadata[domain.MetaItems])
	total := sessionTotal(event, full)

	if email == "" {
		log.Warn("no customer email resolved, confirmation not sent")
	} else if !s.emailConfigured() {
		log.Error("cannot send confirmation, email not configured")
	} else {
		d, suppressed := s.deliverConfirmation(ctx, event.ID, email, name, total, items)
		switch {
		case suppressed:
			log.Info("confirmation already sent for session, skipping")
		case d.State == DeliveryDelivered:
			log.Info("customer confirmation sent", "to", email, "email_id", d.ID)
		default:
			log.Error("customer confirmation not delivered", "to", email, "reason", d.Reason)
		}
	}

	if !s.mailer.Configured() || s.settings.ConsultationEmail == "" {
		log.Warn("business notification skipped, CONSULTATION_EMAIL not set")
		return
	}
	fields := []noticeField{
		{"Customer Name", name},
		{"Customer Email", orDefault(email, "N/A")},
		{"Customer Phone", phone},
		{"Amount", "£" + total.StringFixed(2)},
		{"Order ID", event.ID},
		{"Payment Date", s.now().Format(time.RFC1123)},
	}
	if dc := event.Metadata[domain.MetaDiscountCode]; dc != "" {
		fields = append(fields, noticeField{"Discount Code Used", dc})
	}
	subject := fmt.Sprintf("New Payment Received - £%s - Trade Aviator", total.StringFixed(2))
	s.sendBusinessNotice(ctx, log, subject, businessNoticeData{
		Heading: "New Payment Received",
		Fields:  fields,
		Items:   itemViews(items),
	})
}

// deliverConfirmation sends the customer confirmation for a paid session,
// claiming the session-scoped marker first when one is configured. A failed
// send releases the claim so the other path can still deliver. Marker errors
// degrade to sending: a duplicate email beats a missing one.
func (s *Service) deliverConfirmation(ctx context.Context, sessionID, email, name string, total decimal.Decimal, items []domain.LineItem) (Delivery, bool) {
	claimed := false
	if s.marker != nil {
		ok, err := s.marker.Claim(ctx, sessionID)
		if err != nil {
			s.log.Warn("confirmation dedupe unavailable, sending anyway", "session_id", sessionID, "err", err)
		} else if !ok {
			return Delivery{}, true
		} else {
			claimed = true
		}
	}

	d := s.sendCustomerEmail(ctx, email, name, sessionID, total, items)
	if d.State != DeliveryDelivered && claimed {
		if err := s.marker.Release(ctx, sessionID); err != nil {
			s.log.Warn("confirmation claim release failed", "session_id", sessionID, "err", err)
		}
	}
	return d, false
}

// ResendConfirmation is the client-triggered backstop for webhook delay. It
// re-derives the order from the session and sends only the customer email;
// the business notification stays the webhook's job.
func (s *Service) ResendConfirmation(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrMissingSessionID
	}
	if !s.emailConfigured() {
		return "", &ConfigError{Reason: "Email service not configured"}
	}

	sess, err := s.gateway.FetchSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.PaymentStatus != domain.PaymentStatusPaid {
		s.log.Warn("confirmation refused for unpaid session",
			"session_id", sessionID, "payment_status", sess.PaymentStatus)
		return "", fmt.Errorf("%w: payment status is %q", ErrNotPaid, sess.PaymentStatus)
	}

	email := domain.ResolveCustomerEmail(sess, sess)
	if email == "" {
		return "", ErrNoCustomerEmail
	}
	name := domain.ResolveCustomerName(sess, sess)
	items := domain.ItemsFromMetadata(sess.Metadata[domain.MetaItems])
	total := decimal.New(sess.AmountTotal, -2)

	d, suppressed := s.deliverConfirmation(ctx, sessionID, email, name, total, items)
	if suppressed {
		s.log.Info("confirmation already sent for session", "session_id", sessionID)
		return "", nil
	}
	if d.State != DeliveryDelivered {
		return "", fmt.Errorf("failed to send email: %s", d.Reason)
	}
	s.log.Info("fallback confirmation sent", "session_id", sessionID, "to", email, "email_id", d.ID)
	return d.ID, nil
}

type ConsultationRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SubmitConsultation records the request and notifies the business without
// blocking the response on the email.
func (s *Service) SubmitConsultation(ctx context.Context, req ConsultationRequest) error {
	if req.Name == "" || req.Email == "" || req.Phone == "" {
		return ErrMissingFields
	}

	log := s.log.With("email", req.Email)
	log.Info("consultation request received", "name", req.Name, "phone", req.Phone)

	if !s.mailer.Configured() || s.settings.ConsultationEmail == "" {
		log.Warn("consultation notification skipped, email not configured")
		return nil
	}

	bg := context.WithoutCancel(ctx)
	go s.sendBusinessNotice(bg, log, subjectConsultationNotice, businessNoticeData{
		Heading: "New Consultation Request",
		Fields: []noticeField{
			{"Name", req.Name},
			{"Email", req.Email},
			{"Phone", req.Phone},
			{"Submitted", s.now().Format(time.RFC1123)},
		},
	})
	return nil
}

type DemoPaymentRequest struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	CardNumber string            `json:"cardNumber"`
	ExpiryDate string            `json:"expiryDate"`
	CVV        string            `json:"cvv"`
	Amount     decimal.Decimal   `json:"amount"`
	Items      []domain.LineItem `json:"items"`
}

// RecordDemoPayment handles the legacy card form. It never charges anything:
// the submission is logged (card masked) and forwarded to the business.
func (s *Service) RecordDemoPayment(ctx context.Context, req DemoPaymentRequest) error {
	if req.Name == "" || req.Email == "" || req.Phone == "" ||
		req.CardNumber == "" || req.ExpiryDate == "" || req.CVV == "" {
		return ErrMissingFields
	}

	ref := "PAY-" + uuid.NewString()
	log := s.log.With("ref", ref)
	log.Info("demo payment recorded",
		"name", req.Name,
		"email", req.Email,
		"card", maskCard(req.CardNumber),
		"amount", req.Amount.StringFixed(2))

	if !s.mailer.Configured() || s.settings.ConsultationEmail == "" {
		return nil
	}
	subject := fmt.Sprintf("New Payment - Trade Aviator - £%s", req.Amount.StringFixed(2))
	bg := context.WithoutCancel(ctx)
	go s.sendBusinessNotice(bg, log, subject, businessNoticeData{
		Heading: "New Payment Received",
		Fields: []noticeField{
			{"Reference", ref},
			{"Name", req.Name},
			{"Email", req.Email},
			{"Phone", req.Phone},
			{"Amount", "£" + req.Amount.StringFixed(2)},
			{"Submitted", s.now().Format(time.RFC1123)},
			{"Note", "Demo submission only. No card was charged."},
		},
		Items: itemViews(req.Items),
	})
	return nil
}

// SendTestEmail is the operator diagnostic. An empty recipient targets the
// business address.
func (s *Service) SendTestEmail(ctx context.Context, to string) (string, error) {
	if !s.mailer.Configured() {
		return "", &ConfigError{Reason: "SENDGRID_API_KEY is not set"}
	}
	if s.settings.FromEmail == "" {
		return "", &ConfigError{Reason: "FROM_EMAIL is not set"}
	}
	if to == "" {
		to = s.settings.ConsultationEmail
		if to == "" {
			return "", &ConfigError{Reason: "CONSULTATION_EMAIL is not set"}
		}
	}

	html, text, err := renderTestEmail(s.now())
	if err != nil {
		return "", err
	}
	d := s.mailer.Send(ctx, EmailMessage{
		FromName: s.settings.FromName,
		From:     s.settings.FromEmail,
		To:       to,
		Subject:  subjectTestEmail,
		HTML:     html,
		Text:     text,
	})
	if d.State != DeliveryDelivered {
		return "", fmt.Errorf("failed to send email: %s", d.Reason)
	}
	s.log.Info("test email sent", "to", to, "email_id", d.ID)
	return d.ID, nil
}

func sessionTotal(event, full domain.CheckoutSession) decimal.Decimal {
	minor := event.AmountTotal
	if minor == 0 {
		minor = full.AmountTotal
	}
	return decimal.New(minor, -2)
}

func maskCard(n string) string {
	digits := 0
	for _, r := range n {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	seen := 0
	masked := make([]rune, 0, len(n))
	for _, r := range n {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= digits-4 {
				masked = append(masked, '*')
				continue
			}
		}
		masked = append(masked, r)
	}
	return string(masked)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
