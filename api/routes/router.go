package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/comments"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// RouterParams carries everything the HTTP surface is built from. RedisPinger
// is nil when redis is not configured.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DBPinger    controllers.Pinger
	RedisPinger controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Sessions    *session.Registry
	Auth        auth.Service
	Catalog     products.Catalog
	Comments    comments.Store
	Orders      *orders.Coordinator
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Tracing(logg),
		middleware.Logging(logg),
		middleware.HTTPMetrics(p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DBPinger, p.RedisPinger))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(p.Catalog, logg))
			r.Get("/{productId}", controllers.ProductGet(p.Catalog, logg))
			r.Get("/{productId}/comments", controllers.CommentsList(p.Comments, logg))
			r.With(
				middleware.Identity(cfg.Auth, logg),
				middleware.RequireIdentity(logg),
			).Post("/{productId}/comments", controllers.CommentCreate(p.Comments, logg))
		})

		r.Post("/auth/register", controllers.AuthRegister(p.Auth, logg))

		// Everything below is bound to a cart session.
		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Identity(cfg.Auth, logg),
				middleware.Session(p.Sessions, logg),
			)

			r.Post("/auth/login", controllers.AuthLogin(p.Auth, logg))
			r.With(middleware.RequireIdentity(logg)).Post("/auth/logout", controllers.AuthLogout(p.Auth, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(logg))
				r.Delete("/", controllers.CartClear(logg))
				r.Post("/items", controllers.CartAddItem(logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(logg))
				r.Post("/items/{productId}/decrease", controllers.CartDecreaseItem(logg))
			})

			r.With(middleware.RequireIdentity(logg)).Post("/orders", controllers.OrderSubmit(p.Orders, logg))
		})
	})

	return r
}
