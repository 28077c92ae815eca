package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/awsutil"
	"checkin/internal/config"
	"checkin/internal/guests"
	"checkin/internal/httpserver"
	"checkin/internal/logging"
	"checkin/internal/media"
	"checkin/internal/notify"
	"checkin/internal/observability"
	"checkin/internal/providers/stripe"
	"checkin/internal/store/pg"
	"checkin/internal/verification"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}

	s3Client, err := awsutil.NewS3Client(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("api s3 client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	store := pg.New(db)
	vendor := &stripe.Client{
		SecretKey:       cfg.StripeSecretKey,
		BaseURL:         cfg.StripeBaseURL,
		HTTP:            &http.Client{},
		APITimeout:      cfg.StripeAPITimeout,
		DownloadTimeout: cfg.StripeFileTimeout,
	}
	if !vendor.Configured() || cfg.StripeWebhookSecret == "" {
		slog.Warn("stripe identity not fully configured",
			"secret_key_set", vendor.Configured(), "webhook_secret_set", cfg.StripeWebhookSecret != "")
	}

	svc := &verification.Service{
		Vendor: vendor,
		Store:  store,
		Guests: &guests.Resolver{Store: store},
		Media: &media.S3Store{
			S3:            s3Client,
			Index:         store,
			Bucket:        cfg.MediaBucket,
			PublicBaseURL: cfg.MediaPublicBaseURL,
		},
		Notifier: notify.NewDispatcher(cfg.Notify, store),
		Config: verification.Config{
			WebhookSecret: cfg.StripeWebhookSecret,
			DocumentTypes: cfg.StripeDocumentTypes,
			ReturnURL:     cfg.StripeReturnURL,
		},
	}

	s := httpserver.New()
	(&httpserver.API{Sessions: svc, Reservations: store}).Register(s.API)
	(&httpserver.Webhook{Svc: svc}).Register(s.API)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))
	s.Mux.Handle("/metrics", promhttp.Handler())
	s.Mux.Use(httpserver.Metrics(observability.APIRequests))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.Logging(s.Mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}

	db.Close()
}
