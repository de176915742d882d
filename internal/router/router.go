package router

import (
	"net/http"
	"time"

	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Products *handler.ProductHandler
	Reviews  *handler.ReviewHandler
	Carts    *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Metrics  http.Handler
}

// Options tunes the router.
type Options struct {
	APIKey         string
	RequestTimeout time.Duration
}

// New creates the HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> Logging -> CORS -> Identity; admin routes add APIKeyAuth.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}
	r.Use(middleware.Identity)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.GetAll)
			r.Get("/{id}", h.Products.GetByID)
			r.Get("/{id}/reviews", h.Reviews.List)
			r.Post("/{id}/reviews", h.Reviews.Add)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Carts.Get)
			r.Post("/", h.Carts.AddLine)
			r.Put("/", h.Carts.SetQuantity)
			r.Delete("/", h.Carts.RemoveLine)
			r.Post("/merge", h.Carts.Merge)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.Checkout.Create)
			r.Get("/{id}", h.Checkout.Get)
			r.Put("/{id}/pay", h.Checkout.Pay)
			r.Post("/{id}/finalize", h.Checkout.Finalize)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.List)
			r.Get("/{id}", h.Orders.GetByID)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(opts.APIKey, logger))
			r.Post("/products", h.Products.Create)
			r.Put("/products/{id}", h.Products.Update)
			r.Put("/orders/{id}/status", h.Orders.UpdateStatus)
			r.Post("/orders/{id}/invoice", h.Orders.RegenerateInvoice)
			r.Get("/reports/sales", h.Orders.SalesSummary)
		})
	})

	return r
}
