package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/metrics"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, cfg config.ServerConfig, deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger.With("component", "http")))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health.HandleHealth)
	r.Get("/health/live", h.Health.HandleLiveness)
	r.Get("/health/ready", h.Health.HandleReadiness)

	if deps.MetricsPath != "" && deps.Gatherer != nil {
		r.Handle(deps.MetricsPath, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	if deps.Tracking != nil {
		deps.Tracking.Mount(r)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/experiments", func(r chi.Router) {
			r.Get("/", h.ListExperiments)
			r.Post("/", h.CreateExperiment)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetExperiment)
				r.Post("/start", h.StartExperiment)
				r.Post("/stop", h.StopExperiment)
				r.Post("/pause", h.PauseExperiment)
				r.Post("/archive", h.ArchiveExperiment)
				r.Post("/assignments", h.AssignRecipient)
				r.Post("/events", h.RecordExperimentEvent)
				r.Get("/results", h.ExperimentResults)
			})
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.AllCampaignAnalytics)
			r.Post("/", h.CreateCampaign)
			r.Post("/compare", h.CompareCampaigns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/analytics", h.CampaignAnalytics)
				r.Post("/sent", h.MarkCampaignSent)
				r.Post("/engagements", h.TrackEngagement)
				r.Get("/utm", h.CampaignUTM)
			})
		})

		r.Route("/segments", func(r chi.Router) {
			r.Get("/", h.ListSegments)
			r.Post("/", h.AddSegment)
			r.Post("/determine", h.DetermineSegment)
			r.Post("/statistics", h.SegmentStatistics)
			r.Get("/performance", h.SegmentPerformance)
			r.Get("/{id}/recommendations", h.SegmentRecommendations)
		})

		r.Post("/personalize", h.Personalize)
		r.Post("/send", h.Send)
	})

	return r
}

// requestLogger logs each request and counts it by method and status.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.ObserveRequest(r.Method, status)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
