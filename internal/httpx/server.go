package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/auth"
	"github.com/lokmanguedri/motivex/internal/metrics"
)

type TokenParser interface {
	Parse(token string) (auth.Identity, error)
}

// Handlers groups what the router mounts. Files serves /uploads/ and may be
// nil when uploads live elsewhere; Ping backs /healthz.
type Handlers struct {
	Catalog  *CatalogHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
	Shipping *ShippingHandler
	Auth     *AuthHandler

	Tokens  TokenParser
	Files   http.Handler
	Ping    func(ctx context.Context) error
	Metrics *metrics.Metrics
	Log     zerolog.Logger
	Timeout time.Duration
}

func NewRouter(h Handlers) *chi.Mux {
	if h.Timeout <= 0 {
		h.Timeout = 15 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog(h.Log, h.Metrics), recoverer(h.Log))
	r.Use(middleware.Timeout(h.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if h.Ping != nil {
			if err := h.Ping(r.Context()); err != nil {
				h.Log.Warn().Err(err).Msg("health check")
				writeMessage(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	if h.Files != nil {
		r.Method(http.MethodGet, "/uploads/*", http.StripPrefix("/uploads", h.Files))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate(h.Tokens))

		h.Catalog.Register(r)
		h.Cart.Register(r)
		h.Orders.Register(r)
		h.Shipping.Register(r)
		h.Auth.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			h.Cart.RegisterUser(r)
			h.Auth.RegisterUser(r)
			h.Orders.RegisterUser(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			h.Catalog.RegisterAdmin(r)
			h.Orders.RegisterAdmin(r)
		})
	})
	return r
}
