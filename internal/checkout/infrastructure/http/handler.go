package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tradeaviator/checkout-service/internal/checkout/application"
	"github.com/tradeaviator/checkout-service/internal/checkout/domain"
)

const maxWebhookBody = 1 << 20

type EventParser interface {
	Parse(payload []byte, sigHeader string) (domain.WebhookEvent, error)
}

type Handler struct {
	log     *slog.Logger
	service *application.Service
	events  EventParser
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, events EventParser) *Handler {
	return &Handler{
		log:     log,
		service: service,
		events:  events,
		tracer:  otel.Tracer("checkout-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/consultation", h.consultation)
	r.Post("/create-checkout-session", h.createCheckoutSession)
	r.Post("/payment", h.demoPayment)
	r.Post("/process-free-purchase", h.processFreePurchase)
	r.Post("/send-confirmation-email", h.sendConfirmationEmail)
	r.Get("/test-email", h.testEmailStatus)
	r.Post("/test-email", h.testEmailSend)
	r.Post("/webhooks/stripe", h.stripeWebhook)

	return r
}

type sessionResp struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type freeSessionResp struct {
	IsFree        bool              `json:"isFree"`
	Message       string            `json:"message"`
	Items         []domain.LineItem `json:"items"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerName  string            `json:"customerName"`
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCheckoutSession")
	defer span.End()

	var req application.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.CreateSession(ctx, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if res.IsFree {
		writeJSON(w, http.StatusOK, freeSessionResp{
			IsFree:        true,
			Message:       "Free purchase - no payment required",
			Items:         res.Items,
			CustomerEmail: res.CustomerEmail,
			CustomerName:  res.CustomerName,
		})
		return
	}
	writeJSON(w, http.StatusOK, sessionResp{SessionID: res.SessionID, URL: res.URL})
}

type freePurchaseResp struct {
	Success    bool                  `json:"success"`
	Message    string                `json:"message"`
	EmailSent  bool                  `json:"emailSent"`
	EmailID    *string               `json:"emailId"`
	EmailError *string               `json:"emailError"`
	Debug      application.DebugInfo `json:"debug"`
}

func (h *Handler) processFreePurchase(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProcessFreePurchase")
	defer span.End()

	var req application.FreePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.ProcessFreePurchase(ctx, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	// Email failure is reported in the payload; the order is placed either way.
	writeJSON(w, http.StatusOK, freePurchaseResp{
		Success:    true,
		Message:    "Free purchase processed successfully",
		EmailSent:  res.EmailSent,
		EmailID:    nullable(res.EmailID),
		EmailError: nullable(res.EmailError),
		Debug:      res.Debug,
	})
}

func (h *Handler) sendConfirmationEmail(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SendConfirmationEmail")
	defer span.End()

	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	emailID, err := h.service.ResendConfirmation(ctx, req.SessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email sent successfully",
		"emailId": nullable(emailID),
	})
}

func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "StripeWebhook")
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable webhook body")
		return
	}

	ev, err := h.events.Parse(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.Error("webhook rejected", "err", err)
		writeError(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	if ev.Type != domain.EventCheckoutSessionCompleted {
		h.log.Info("ignoring webhook event", "type", ev.Type)
		writeJSON(w, http.StatusOK, map[string]any{"received": true, "eventType": ev.Type})
		return
	}

	// Email outcomes never fail the webhook; the provider must not retry on
	// our downstream notification problems.
	h.service.HandleCompletedSession(ctx, ev.Session)
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (h *Handler) consultation(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Consultation")
	defer span.End()

	ok := map[string]any{"success": true, "message": "Consultation request received successfully"}

	var req application.ConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// The marketing form must never see a failure; the submission is lost
		// but logged.
		h.log.Error("consultation body unreadable", "err", err)
		writeJSON(w, http.StatusOK, ok)
		return
	}

	if err := h.service.SubmitConsultation(ctx, req); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

func (h *Handler) demoPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DemoPayment")
	defer span.End()

	ok := map[string]any{"success": true, "message": "Payment request received successfully"}

	var req application.DemoPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error("payment body unreadable", "err", err)
		writeJSON(w, http.StatusOK, ok)
		return
	}

	if err := h.service.RecordDemoPayment(ctx, req); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

func (h *Handler) testEmailStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TestEmail")
	defer span.End()

	h.finishTestEmail(ctx, w, "")
}

func (h *Handler) testEmailSend(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TestEmail")
	defer span.End()

	var req struct {
		TestEmail string `json:"testEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TestEmail == "" {
		writeError(w, http.StatusBadRequest, "testEmail is required")
		return
	}
	h.finishTestEmail(ctx, w, req.TestEmail)
}

func (h *Handler) finishTestEmail(ctx context.Context, w http.ResponseWriter, to string) {
	emailID, err := h.service.SendTestEmail(ctx, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Test email sent successfully",
		"emailId": emailID,
		"status":  "success",
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var ce *application.ConfigError
	switch {
	case errors.Is(err, application.ErrNoItems):
		writeError(w, http.StatusBadRequest, "Items are required")
	case errors.Is(err, application.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, "Item prices must be non-negative")
	case errors.Is(err, application.ErrMissingCustomer):
		writeError(w, http.StatusBadRequest, "Customer email and name are required")
	case errors.Is(err, application.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "All fields are required")
	case errors.Is(err, application.ErrMissingSessionID):
		writeError(w, http.StatusBadRequest, "Session ID is required")
	case errors.Is(err, application.ErrNotPaid):
		writeError(w, http.StatusBadRequest, "Payment not completed")
	case errors.Is(err, application.ErrNoCustomerEmail):
		writeError(w, http.StatusBadRequest, "Customer email not found")
	case errors.As(err, &ce):
		writeError(w, http.StatusInternalServerError, ce.Reason)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
