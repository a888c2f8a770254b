package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transport-dispatch/internal/http/handlers"
	httpmw "transport-dispatch/internal/http/middleware"
	"transport-dispatch/internal/http/middleware/ratelimit"
	"transport-dispatch/internal/logx"
)

// New constructs a chi-based http.Handler with base middleware and routes.
func New(
	logger logx.Logger,
	h *handlers.Handlers,
	offers *handlers.OfferHandler,
	dispatches *handlers.DispatchHandler,
	rl *ratelimit.Middleware,
	serviceToken httpmw.ServiceToken,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmw.Observability(logger))
	if rl != nil {
		r.Use(rl.Handler())
	}
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/ping", h.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/transport-offers", func(r chi.Router) {
		r.Use(httpmw.RequireTransporter(logger))
		r.Get("/", offers.List)
		r.Post("/{offerId}/accept", offers.Accept)
		r.Post("/{offerId}/decline", offers.Decline)
		r.Post("/{offerId}/counter", offers.Counter)
	})

	// order service only
	if serviceToken != "" {
		r.Route("/dispatches", func(r chi.Router) {
			r.Use(httpmw.RequireService(logger, serviceToken))
			r.Post("/", dispatches.Create)
			r.Get("/{orderId}", dispatches.Get)
		})
	}

	r.NotFound(http.HandlerFunc(h.NotFound))

	return r
}
