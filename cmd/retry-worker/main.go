package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fairwavehq/fairwave-backend/internal/catalog"
	"github.com/fairwavehq/fairwave-backend/internal/fees"
	"github.com/fairwavehq/fairwave-backend/internal/notify"
	"github.com/fairwavehq/fairwave-backend/internal/payouts"
	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
	"github.com/fairwavehq/fairwave-backend/pkg/paypalclient"
	"github.com/fairwavehq/fairwave-backend/pkg/sendgrid"
	stripeclient "github.com/fairwavehq/fairwave-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "retry-worker"})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "retry-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	currency, err := enums.ParseCurrency(cfg.App.Currency)
	if err != nil {
		logg.Error(ctx, "invalid settlement currency", err)
		os.Exit(1)
	}

	store, err := docstore.NewFirestoreStore(ctx, cfg.Firestore, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap docstore", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(ctx, "error closing docstore", err)
		}
	}()

	stripeClient, err := stripeclient.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	paypalClient, err := paypalclient.NewClient(ctx, cfg.PayPal, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap paypal client", err)
		os.Exit(1)
	}

	sendgridClient, err := sendgrid.NewClient(ctx, cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap sendgrid client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(registry)
	workerMetrics := metrics.NewWorkerJobMetrics(registry)

	catalogRepo, err := catalog.NewRepo(store)
	if err != nil {
		logg.Error(ctx, "failed to create catalog repo", err)
		os.Exit(1)
	}
	notifyService, err := notify.NewService(sendgridClient, cfg.Sendgrid.FulfillmentEmail, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notify service", err)
		os.Exit(1)
	}
	payoutsRepo, err := payouts.NewRepo(store)
	if err != nil {
		logg.Error(ctx, "failed to create payouts repo", err)
		os.Exit(1)
	}
	payoutsService, err := payouts.NewService(
		payoutsRepo,
		catalogRepo,
		stripeClient,
		paypalClient,
		notifyService,
		fees.NewCalculator(cfg.Fees),
		settlementMetrics,
		logg,
		currency,
		cfg.Worker.MaxAttempts,
	)
	if err != nil {
		logg.Error(ctx, "failed to create payouts service", err)
		os.Exit(1)
	}

	svc, err := NewService(ServiceParams{
		Config:  cfg,
		Logger:  logg,
		Payouts: payoutsService,
		Metrics: workerMetrics,
		Pingers: map[string]pinger{"docstore": store},
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting retry worker")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "retry worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "retry worker shut down")
}
