package inventory

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"MiniPOS/internal/auth"
	"MiniPOS/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// Auth guards every write when set. Without it the API is open, which is
	// only meant for a single trusted terminal.
	Auth *auth.Server

	LoginLimitPerMin  int
	ImportLimitPerMin int
}

const (
	defaultLoginLimitPerMin  = 5
	defaultImportLimitPerMin = 20
	limitWindow              = 60 * time.Second
)

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if s.Log == nil {
		s.Log = deps.Log
	}

	r := chi.NewRouter()

	metricsOn := deps.MetricsEnabled && deps.Registry != nil
	if deps.MetricsEnabled && deps.Registry == nil {
		deps.Log.Warn("metrics enabled but Registry is nil")
	}

	setupMiddleware(r, deps, metricsOn)
	setupRoutes(r, s, deps, metricsOn)

	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps, metricsOn bool) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer(deps.Log))
	r.Use(kit.Logging(deps.Log))

	if metricsOn {
		metrics := kit.NewMetrics(deps.Registry)
		r.Use(metrics.Middleware(deps.Service))
	}
}

func setupRoutes(r *chi.Mux, s *Server, deps HTTPDeps, metricsOn bool) {
	importLimiter := kit.NewIPRateLimiter(orDefault(deps.ImportLimitPerMin, defaultImportLimitPerMin), limitWindow)

	r.Get("/healthz", healthz)
	r.Get("/readyz", s.ready)

	if metricsOn {
		r.With(kit.MetricsAuth(deps.MetricsToken)).Handle(
			"/metrics",
			promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}),
		)
	}

	if deps.Auth != nil {
		loginLimiter := kit.NewIPRateLimiter(orDefault(deps.LoginLimitPerMin, defaultLoginLimitPerMin), limitWindow)
		r.With(loginLimiter.Middleware).Post("/auth/login", deps.Auth.HandleLogin)
	}

	r.Get("/products", s.listProducts)
	r.Get("/products/{id}", s.getProduct)
	r.Get("/sales", s.listSales)
	r.Get("/sales/{id}", s.getSale)
	r.Get("/summary", s.summary)
	r.Get("/reports/export", s.export)

	r.Group(func(wr chi.Router) {
		if deps.Auth != nil {
			wr.Use(auth.RequireOperator(deps.Auth.JWT))
		}

		wr.Post("/products", s.addProduct)
		wr.Put("/products/{id}", s.editProduct)
		wr.Post("/products/{id}/stock", s.adjustStock)
		wr.Delete("/products/{id}", s.removeProduct)

		wr.Post("/sales", s.commitSale)
		wr.Post("/sales/clear", s.clearSales)
		wr.With(importLimiter.Middleware).Post("/sales/import", s.importOrder)
		wr.Delete("/sales/{id}", s.voidSale)
	})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
