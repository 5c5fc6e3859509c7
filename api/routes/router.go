package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avrportal/tindago-backend/api/controllers"
	"github.com/avrportal/tindago-backend/api/middleware"
	"github.com/avrportal/tindago-backend/internal/cancellations"
	"github.com/avrportal/tindago-backend/internal/orders"
	"github.com/avrportal/tindago-backend/internal/payments"
	paymongohook "github.com/avrportal/tindago-backend/internal/webhooks/paymongo"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/db"
	"github.com/avrportal/tindago-backend/pkg/logger"
	"github.com/avrportal/tindago-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. The webhook route stays
// outside the auth chain because the gateway authenticates by signature.
type Deps struct {
	Cfg           *config.Config
	Logg          *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Registry      *prometheus.Registry
	Orders        orders.Service
	Payments      payments.Service
	Cancellations *cancellations.Manager
	PayMongoHooks *paymongohook.Service
}

// NewRouter assembles the full route tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(d.Logg),
		middleware.RequestID(d.Logg),
		middleware.Logging(d.Logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Cfg))
		r.Get("/ready", controllers.HealthReady(d.Cfg, d.Logg, d.DB, d.Redis))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/ping", controllers.PublicPing())

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/paymongo", controllers.PayMongoWebhook(d.PayMongoHooks, d.Logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Cfg.JWT, d.Logg))
		if d.Redis != nil {
			r.Use(middleware.Idempotency(d.Redis, d.Logg))
		}

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(d.Orders, d.Logg))
			r.Get("/", controllers.OrderList(d.Orders, d.Logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderGet(d.Orders, d.Payments, d.Logg))
				r.Post("/cancel", controllers.OrderCancel(d.Cancellations, d.Logg))
				r.Post("/status", controllers.OrderTransition(d.Orders, d.Logg))
				r.Post("/payment", controllers.PaymentStart(d.Payments, d.Logg))
				r.Post("/payment/reconcile", controllers.PaymentReconcile(d.Payments, d.Logg))
			})
		})
	})

	return r
}
