// Command stripehook runs the Stripe subscription webhook ingestion
// service: one POST endpoint that verifies, normalizes and forwards
// subscription lifecycle events to the idempotent ingest procedure.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rootedhq/stripehook/pkg/webhook"
	zerologadapter "github.com/rootedhq/stripehook/pkg/webhook/logger/zerolog"
	prommetrics "github.com/rootedhq/stripehook/pkg/webhook/metrics/prometheus"
	"github.com/rootedhq/stripehook/storage/postgres"
	rediscache "github.com/rootedhq/stripehook/storage/redis"
)

const shutdownTimeout = 10 * time.Second

type config struct {
	SigningSecret string
	StripeAPIKey  string
	DatabaseURL   string
	RedisAddr     string
	ListenAddr    string
}

func loadConfig() config {
	cfg := config{
		SigningSecret: os.Getenv("STRIPE_WEBHOOK_SIGNING_SECRET"),
		StripeAPIKey:  os.Getenv("STRIPE_SECRET_KEY"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		ListenAddr:    os.Getenv("LISTEN_ADDR"),
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	return cfg
}

// missing lists required env values that are absent. The API key is part
// of the deployment contract even though webhook verification itself only
// needs the signing secret.
func (c config) missing() []string {
	var m []string
	if c.SigningSecret == "" {
		m = append(m, "STRIPE_WEBHOOK_SIGNING_SECRET")
	}
	if c.StripeAPIKey == "" {
		m = append(m, "STRIPE_SECRET_KEY")
	}
	if c.DatabaseURL == "" {
		m = append(m, "DATABASE_URL")
	}
	return m
}

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := loadConfig()
	if missing := cfg.missing(); len(missing) > 0 {
		// Deliberately not fatal: a misdeployed process still answers
		// requests, and a missing signing secret surfaces as 400s.
		logger.Error().Strs("vars", missing).Msg("missing environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgConfig := postgres.DefaultConfig()
	pgConfig.ConnectionString = cfg.DatabaseURL
	store, err := postgres.New(ctx, pgConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize postgres store")
	}
	defer store.Close()

	var resolver webhook.CustomerResolver = store
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		cached, err := rediscache.New(client, store, rediscache.DefaultConfig())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize redis cache")
		}
		resolver = cached
		logger.Info().Str("addr", cfg.RedisAddr).Msg("customer lookups cached in redis")
	}

	registry := prometheus.NewRegistry()
	metrics := prommetrics.NewMetrics(registry, "stripehook")

	handler, err := webhook.NewHandler(webhook.Config{
		SigningSecret: cfg.SigningSecret,
		Resolver:      resolver,
		Ingestor:      store,
		Logger:        zerologadapter.NewLogger(logger),
		Metrics:       metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create webhook handler")
	}

	router := chi.NewRouter()
	router.Handle("/webhooks/stripe", handler.WebhookHandler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("shutdown complete")
}
