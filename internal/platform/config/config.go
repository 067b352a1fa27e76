package config

import (
	"log/slog"
	"os"
	"strings"
)

// Config is read once at startup and handed to the constructors that need
// it. Missing provider credentials are not fatal here: each request path
// reports its own descriptive configuration error instead of crashing the
// process.
type Config struct {
	HTTPAddr            string
	StripeSecretKey     string
	StripeWebhookSecret string
	SendGridAPIKey      string
	FromEmail           string
	FromName            string
	ConsultationEmail   string
	BaseURL             string
	RedisAddr           string
	OTLPEndpoint        string
	LogLevel            slog.Level
}

func Load() Config {
	return Config{
		HTTPAddr:            env("HTTP_ADDR", ":8080"),
		StripeSecretKey:     strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		SendGridAPIKey:      strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		FromEmail:           strings.TrimSpace(os.Getenv("FROM_EMAIL")),
		FromName:            env("FROM_NAME", "Trade Aviator"),
		ConsultationEmail:   strings.TrimSpace(os.Getenv("CONSULTATION_EMAIL")),
		BaseURL:             strings.TrimRight(env("BASE_URL", "http://localhost:3001"), "/"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		OTLPEndpoint:        os.Getenv("OTLP_ENDPOINT"),
		LogLevel:            parseLevel(env("LOG_LEVEL", "info")),
	}
}

// Warnings lists configuration gaps worth logging at startup. None are fatal;
// the affected paths fail per-request with the same information.
func (c Config) Warnings() []string {
	var out []string
	if c.StripeSecretKey == "" {
		out = append(out, "STRIPE_SECRET_KEY is not set; checkout-session endpoints will fail")
	} else if !strings.HasPrefix(c.StripeSecretKey, "sk_") {
		out = append(out, "STRIPE_SECRET_KEY does not look like a secret key (expected sk_ prefix)")
	}
	if c.StripeWebhookSecret == "" {
		out = append(out, "STRIPE_WEBHOOK_SECRET is not set; webhook signatures will not be verified")
	}
	if c.SendGridAPIKey == "" {
		out = append(out, "SENDGRID_API_KEY is not set; no emails will be sent")
	}
	if c.FromEmail == "" {
		out = append(out, "FROM_EMAIL is not set; no emails will be sent")
	}
	if c.ConsultationEmail == "" {
		out = append(out, "CONSULTATION_EMAIL is not set; business notifications will be skipped")
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
