package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fairwavehq/fairwave-backend/api/controllers"
	"github.com/fairwavehq/fairwave-backend/api/routes"
	"github.com/fairwavehq/fairwave-backend/internal/catalog"
	"github.com/fairwavehq/fairwave-backend/internal/fees"
	"github.com/fairwavehq/fairwave-backend/internal/notify"
	"github.com/fairwavehq/fairwave-backend/internal/orders"
	"github.com/fairwavehq/fairwave-backend/internal/payouts"
	"github.com/fairwavehq/fairwave-backend/internal/reconcile"
	"github.com/fairwavehq/fairwave-backend/internal/stock"
	stripewebhook "github.com/fairwavehq/fairwave-backend/internal/webhooks/stripe"
	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
	"github.com/fairwavehq/fairwave-backend/pkg/paypalclient"
	"github.com/fairwavehq/fairwave-backend/pkg/pubsub"
	"github.com/fairwavehq/fairwave-backend/pkg/redis"
	"github.com/fairwavehq/fairwave-backend/pkg/sendgrid"
	stripeclient "github.com/fairwavehq/fairwave-backend/pkg/stripe"
)

const webhookIdempotencyTTL = 72 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
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

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub client", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	registry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	catalogRepo, err := catalog.NewRepo(store)
	if err != nil {
		logg.Error(ctx, "failed to create catalog repo", err)
		os.Exit(1)
	}
	stockLedger, err := stock.NewLedger(store, logg)
	if err != nil {
		logg.Error(ctx, "failed to create stock ledger", err)
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

	ordersRepo, err := orders.NewRepo(store)
	if err != nil {
		logg.Error(ctx, "failed to create orders repo", err)
		os.Exit(1)
	}
	assembler, err := orders.NewAssembler(
		ordersRepo,
		catalogRepo,
		stockLedger,
		payoutsService,
		notifyService,
		pubsubClient,
		settlementMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create order assembler", err)
		os.Exit(1)
	}

	reconcileRepo, err := reconcile.NewRepo(store)
	if err != nil {
		logg.Error(ctx, "failed to create reconcile repo", err)
		os.Exit(1)
	}
	reconciler, err := reconcile.NewService(
		reconcileRepo,
		ordersRepo,
		payoutsRepo,
		catalogRepo,
		stripeClient,
		paypalClient,
		notifyService,
		pubsubClient,
		settlementMetrics,
		logg,
		currency,
	)
	if err != nil {
		logg.Error(ctx, "failed to create reconcile service", err)
		os.Exit(1)
	}

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(ctx, "failed to create idempotency guard", err)
		os.Exit(1)
	}
	webhookService, err := stripewebhook.NewService(
		guard,
		assembler,
		reconciler,
		stripeClient,
		stripeClient.SigningSecret(),
		settlementMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config: cfg,
			Logger: logg,
			Pingers: map[string]controllers.Pinger{
				"docstore": store,
				"redis":    redisClient,
				"pubsub":   pubsubClient,
			},
			Gatherer:  registry,
			Orders:    ordersRepo,
			Assembler: assembler,
			Payouts:   payoutsService,
			PayoutLog: payoutsRepo,
			Webhooks:  webhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
