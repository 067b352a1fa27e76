package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/tradeaviator/checkout-service/internal/checkout/application"
	checkouthttp "github.com/tradeaviator/checkout-service/internal/checkout/infrastructure/http"
	"github.com/tradeaviator/checkout-service/internal/checkout/infrastructure/mail"
	"github.com/tradeaviator/checkout-service/internal/checkout/infrastructure/stripegw"
	"github.com/tradeaviator/checkout-service/internal/platform/config"
	"github.com/tradeaviator/checkout-service/pkg/idempotency"
	"github.com/tradeaviator/checkout-service/pkg/logging"
	"github.com/tradeaviator/checkout-service/pkg/shutdown"
	"github.com/tradeaviator/checkout-service/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "checkout-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	for _, warn := range cfg.Warnings() {
		log.Warn(warn)
	}

	// Optional confirmation dedupe between webhook and fallback sender.
	var marker application.ConfirmationMarker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		marker = idempotency.NewStore(rdb, 24*time.Hour)
		log.Info("confirmation dedupe enabled", "redis", cfg.RedisAddr)
	}

	gateway := stripegw.New(log, cfg.StripeSecretKey)
	verifier := stripegw.NewEventVerifier(log, cfg.StripeWebhookSecret)
	mailer := mail.NewSendGrid(log, cfg.SendGridAPIKey)

	svc := application.NewService(log, gateway, mailer, marker, application.Settings{
		FromEmail:         cfg.FromEmail,
		FromName:          cfg.FromName,
		ConsultationEmail: cfg.ConsultationEmail,
		BaseURL:           cfg.BaseURL,
	})
	handler := checkouthttp.NewHandler(log, svc, verifier)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("checkout-service shutdown complete")
}
