package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairwavehq/fairwave-backend/api/controllers"
	webhookcontrollers "github.com/fairwavehq/fairwave-backend/api/controllers/webhooks"
	"github.com/fairwavehq/fairwave-backend/api/middleware"
	"github.com/fairwavehq/fairwave-backend/internal/orders"
	"github.com/fairwavehq/fairwave-backend/internal/payouts"
	stripewebhook "github.com/fairwavehq/fairwave-backend/internal/webhooks/stripe"
	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
)

// Deps carries everything the router wires into handlers. Nil optional
// entries (gatherer, pingers) degrade that surface rather than panic.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Pingers   map[string]controllers.Pinger
	Gatherer  prometheus.Gatherer
	Orders    *orders.Repo
	Assembler *orders.Assembler
	Payouts   *payouts.Service
	PayoutLog *payouts.Repo
	Webhooks  *stripewebhook.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.Webhooks, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/confirm", controllers.ConfirmOrder(d.Webhooks, logg))
		r.Get("/{orderID}", controllers.GetOrder(d.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, "admin", "support"))
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/payouts", controllers.AdminListOrderPayouts(d.PayoutLog, logg))
			r.Post("/repair-stock", controllers.AdminRepairStock(d.Assembler, logg))
			r.Post("/repair-payouts", controllers.AdminRepairPayouts(d.Assembler, logg))
		})
		r.Post("/payouts/retry", controllers.AdminRetryPayouts(d.Payouts, cfg.Worker.RetryBatchSize, logg))
	})

	return r
}
