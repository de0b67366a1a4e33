// Package api exposes the engine over HTTP: experiment administration,
// campaign analytics, segmentation, personalization previews and the
// tracking endpoints.
package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter-engine/internal/newsletter"
	"github.com/ignite/newsletter-engine/internal/pkg/httputil"
	"github.com/ignite/newsletter-engine/internal/tracking"
)

// Dependencies are the collaborators the API is built from. Everything but
// Engine is optional.
type Dependencies struct {
	Engine      *newsletter.Engine
	Sender      *newsletter.Sender
	Tracking    *tracking.Handler
	DB          *sql.DB
	Redis       *redis.Client
	Gatherer    prometheus.Gatherer
	MetricsPath string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	engine *newsletter.Engine
	sender *newsletter.Sender
	Health *HealthChecker
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		engine: deps.Engine,
		sender: deps.Sender,
		Health: NewHealthChecker(deps.Engine, deps.DB, deps.Redis),
	}
}

func idParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// requireField answers 400 and returns false when value is empty.
func requireField(w http.ResponseWriter, name, value string) bool {
	if value == "" {
		httputil.BadRequest(w, name+" is required")
		return false
	}
	return true
}
