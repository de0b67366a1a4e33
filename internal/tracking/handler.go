package tracking

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/metrics"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the open pixel, click redirect and unsubscribe endpoints.
type Handler struct {
	signer *Signer
	sink   Sink
	now    func() time.Time
	log    *logger.Logger
}

func NewHandler(signer *Signer, sink Sink) *Handler {
	return &Handler{
		signer: signer,
		sink:   sink,
		now:    time.Now,
		log:    logger.With("component", "tracking"),
	}
}

// Mount registers the tracking routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/track/open/{data}/{sig}", h.HandleOpen)
	r.Get("/track/click/{data}/{sig}", h.HandleClick)
	r.Get("/track/unsubscribe/{data}/{sig}", h.HandleUnsubscribe)
}

// Routes returns a standalone router with the tracking endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func (h *Handler) decode(r *http.Request) (Link, error) {
	return h.signer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
}

func (h *Handler) publish(r *http.Request, kind domain.EngagementKind, l Link) {
	evt := newEvent(kind, l, realIP(r), r.UserAgent(), h.now().UTC())
	err := h.sink.Publish(r.Context(), evt)
	metrics.IncTracking("publish", err)
	if err != nil {
		h.log.Error("tracking publish failed", "kind", string(kind), "campaign_id", l.CampaignID, "error", err)
	}
}

// HandleOpen always answers with the pixel so mail clients render cleanly.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	l, err := h.decode(r)
	if err != nil {
		h.log.Debug("open link rejected", "error", err)
		h.servePixel(w)
		return
	}
	h.publish(r, domain.EngagementOpened, l)
	h.servePixel(w)
}

// HandleClick records the click and redirects. Unsigned or non-http
// targets are refused rather than redirected.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	l, err := h.decode(r)
	if err != nil || !safeRedirect(l.URL) {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}
	h.publish(r, domain.EngagementClicked, l)
	http.Redirect(w, r, l.URL, http.StatusTemporaryRedirect)
}

func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	l, err := h.decode(r)
	if err != nil {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}
	h.publish(r, domain.EngagementUnsubscribed, l)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
		<h1>You have been unsubscribed</h1>
		<p>You will no longer receive this newsletter.</p>
	</body></html>`))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
