package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_ADDR", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET",
		"SENDGRID_API_KEY", "FROM_EMAIL", "FROM_NAME", "CONSULTATION_EMAIL",
		"BASE_URL", "REDIS_ADDR", "OTLP_ENDPOINT", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	c := Load()
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "Trade Aviator", c.FromName)
	assert.Equal(t, "http://localhost:3001", c.BaseURL)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
}

func TestLoadTrimsBaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASE_URL", "https://tradeaviator.co.uk/")

	c := Load()
	assert.Equal(t, "https://tradeaviator.co.uk", c.BaseURL)
}

func TestLoadTrimsCredentialWhitespace(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRIPE_SECRET_KEY", " sk_test_123 ")
	t.Setenv("SENDGRID_API_KEY", "SG.abc\n")

	c := Load()
	assert.Equal(t, "sk_test_123", c.StripeSecretKey)
	assert.Equal(t, "SG.abc", c.SendGridAPIKey)
}

func TestWarningsNameEveryGap(t *testing.T) {
	clearEnv(t)

	warnings := Load().Warnings()
	joined := ""
	for _, w := range warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "STRIPE_SECRET_KEY")
	assert.Contains(t, joined, "STRIPE_WEBHOOK_SECRET")
	assert.Contains(t, joined, "SENDGRID_API_KEY")
	assert.Contains(t, joined, "FROM_EMAIL")
	assert.Contains(t, joined, "CONSULTATION_EMAIL")
}

func TestWarningsFlagNonSecretKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRIPE_SECRET_KEY", "pk_test_123")

	warnings := Load().Warnings()
	found := false
	for _, w := range warnings {
		if w == "STRIPE_SECRET_KEY does not look like a secret key (expected sk_ prefix)" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestWarningsEmptyWhenFullyConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("SENDGRID_API_KEY", "SG.abc")
	t.Setenv("FROM_EMAIL", "noreply@tradeaviator.co.uk")
	t.Setenv("CONSULTATION_EMAIL", "ops@tradeaviator.co.uk")

	assert.Empty(t, Load().Warnings())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}
