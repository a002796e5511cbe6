package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/prometheus"
	"github.com/biosustain/lifelike-annotator/internal/interfaces/http/handlers"
	"github.com/biosustain/lifelike-annotator/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	// Handlers
	AnnotationHandler *handlers.AnnotationHandler
	ManualHandler     *handlers.ManualHandler
	GlobalListHandler *handlers.GlobalListHandler
	EnrichmentHandler *handlers.EnrichmentHandler
	SearchHandler     *handlers.SearchHandler
	HealthHandler     *handlers.HealthHandler

	// Middleware
	CORSMiddleware *middleware.CORSMiddleware
	LoggingConfig  *middleware.LoggingConfig
	RateLimiter    middleware.RateLimiter

	// Infrastructure
	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter constructs the complete HTTP route tree from the given
// configuration. It wires global middleware, public health endpoints, and the
// API v1 resource groups into a single http.Handler suitable for use with
// http.Server. Authentication happens at the gateway; the router trusts the
// forwarded X-User-Id header.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware (applied to every request) ---
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORSMiddleware != nil {
		r.Use(cfg.CORSMiddleware.Handler)
	}
	if cfg.Logger != nil {
		logCfg := middleware.DefaultLoggingConfig()
		if cfg.LoggingConfig != nil {
			logCfg = *cfg.LoggingConfig
		}
		r.Use(middleware.RequestLogging(cfg.Logger, logCfg))
	}
	if cfg.RateLimiter != nil {
		rlCfg := middleware.DefaultRateLimitConfig()
		rlCfg.KeyFunc = middleware.UserKeyFunc
		rlCfg.SkipPaths = []string{"/healthz", "/readyz", "/metrics"}
		r.Use(middleware.RateLimit(cfg.RateLimiter, rlCfg))
	}

	// --- Public health endpoints ---
	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
		r.Get("/healthz/detailed", cfg.HealthHandler.Detailed)
	}

	// --- Metrics endpoint (expected behind an internal firewall rule) ---
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	// --- API v1 ---
	r.Route("/api/v1", func(api chi.Router) {
		registerFileRoutes(api, cfg.AnnotationHandler, cfg.ManualHandler)
		registerGlobalListRoutes(api, cfg.GlobalListHandler)
		registerEnrichmentRoutes(api, cfg.EnrichmentHandler)
		if cfg.SearchHandler != nil {
			api.Get("/annotations/search", cfg.SearchHandler.Search)
		}
	})

	return r
}

// registerFileRoutes mounts annotation endpoints under /files.
func registerFileRoutes(r chi.Router, ah *handlers.AnnotationHandler, mh *handlers.ManualHandler) {
	r.Route("/files", func(fr chi.Router) {
		if ah != nil {
			fr.Post("/annotate", ah.Annotate)
		}

		fr.Route("/{hashID}", func(item chi.Router) {
			if ah != nil {
				item.Post("/annotate", ah.AnnotateOne)
				item.Get("/annotations", ah.Get)
				item.Get("/annotations/collection", ah.GetCollection)
				item.Get("/versions", ah.Versions)
			}

			if mh != nil {
				item.Route("/annotations/custom", func(cr chi.Router) {
					cr.Post("/", mh.AddInclusion)
					cr.Delete("/{uuid}", mh.RemoveInclusion)
				})
				item.Route("/annotations/exclusions", func(er chi.Router) {
					er.Post("/", mh.AddExclusion)
					er.Delete("/", mh.RemoveExclusion)
				})
			}
		})
	})
}

// registerGlobalListRoutes mounts global inclusion/exclusion list endpoints
// under /global-list.
func registerGlobalListRoutes(r chi.Router, h *handlers.GlobalListHandler) {
	if h == nil {
		return
	}
	r.Route("/global-list", func(gr chi.Router) {
		gr.Get("/", h.List)
		gr.Post("/", h.Create)
		gr.Delete("/", h.Delete)
	})
}

// registerEnrichmentRoutes mounts enrichment table endpoints under /enrichment.
func registerEnrichmentRoutes(r chi.Router, h *handlers.EnrichmentHandler) {
	if h == nil {
		return
	}
	r.Route("/enrichment", func(er chi.Router) {
		er.Post("/annotate", h.Annotate)
	})
}
