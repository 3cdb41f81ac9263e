package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/etherloops/ether-backend/api/controllers"
	"github.com/etherloops/ether-backend/api/middleware"
	"github.com/etherloops/ether-backend/internal/orders"
	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/internal/review"
	"github.com/etherloops/ether-backend/internal/shopper"
	"github.com/etherloops/ether-backend/pkg/config"
	"github.com/etherloops/ether-backend/pkg/enums"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/redis"
)

// Dependencies are the services mounted by the API router.
type Dependencies struct {
	Products    products.Service
	Orders      orders.Service
	Review      *review.Service
	Sessions    *shopper.Manager
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	Readiness   map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/products", controllers.ProductsBrowse(deps.Products, logg))
			r.Get("/products/{productId}", controllers.ProductGet(deps.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			if deps.Idempotency != nil {
				r.Use(middleware.Idempotency(deps.Idempotency, logg))
			}

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(deps.Sessions, logg))
				r.Delete("/", controllers.CartClear(deps.Sessions, logg))
				r.Post("/items", controllers.CartAddItem(deps.Sessions, deps.Products, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Sessions, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.WishlistGet(deps.Sessions, logg))
				r.Post("/toggle", controllers.WishlistToggle(deps.Sessions, deps.Products, logg))
			})

			r.Delete("/session", controllers.SessionEnd(deps.Sessions, logg))

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", controllers.CheckoutView(deps.Sessions, logg))
				r.Post("/proceed", controllers.CheckoutProceed(deps.Sessions, logg))
				r.Post("/back", controllers.CheckoutBack(deps.Sessions, logg))
				r.Post("/pay", controllers.CheckoutPay(deps.Sessions, logg))
				r.Post("/cancel", controllers.CheckoutCancel(deps.Sessions, logg))
				r.Post("/reset", controllers.CheckoutReset(deps.Sessions, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(deps.Orders, logg))
				r.Get("/{orderId}", controllers.OrderGet(deps.Orders, logg))
			})

			r.Route("/vendor", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleVendor))
				r.Get("/products", controllers.VendorProducts(deps.Products, logg))
				r.Get("/commissions", controllers.VendorCommissions(deps.Orders, logg))
			})

			r.Route("/admin/review", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Get("/", controllers.AdminReviewState(deps.Review, logg))
				r.Post("/reload", controllers.AdminReviewReload(deps.Review, logg))
				r.Post("/approve", controllers.AdminReviewApprove(deps.Review, logg))
				r.Post("/reject", controllers.AdminReviewReject(deps.Review, logg))
				r.Post("/navigate", controllers.AdminReviewNavigate(deps.Review, logg))
				r.Post("/swipe", controllers.AdminReviewSwipe(deps.Review, logg))
			})
		})
	})

	return r
}
