package api

import (
	"errors"
	"net/http"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/newsletter"
	"github.com/ignite/newsletter-engine/internal/personalization"
	"github.com/ignite/newsletter-engine/internal/pkg/httputil"
	"github.com/ignite/newsletter-engine/internal/segmentation"
)

var segmentErrors = []httputil.Mapping{
	{Err: segmentation.ErrInvalidSegment, Status: http.StatusBadRequest, Code: "invalid_segment"},
}

var sendErrors = []httputil.Mapping{
	{Err: newsletter.ErrCycleInProgress, Status: http.StatusConflict, Code: "cycle_in_progress"},
	{Err: newsletter.ErrNoSubscribers, Status: http.StatusBadRequest, Code: "no_subscribers"},
	{Err: personalization.ErrNoRepositories, Status: http.StatusBadRequest, Code: "no_repositories"},
}

func (h *Handlers) ListSegments(w http.ResponseWriter, r *http.Request) {
	segments := h.engine.Segments.Segments()
	httputil.OK(w, map[string]any{"segments": segments, "total": len(segments)})
}

// AddSegment appends a custom segment to the catalog.
//
//	POST /api/segments
func (h *Handlers) AddSegment(w http.ResponseWriter, r *http.Request) {
	var s domain.Segment
	if !httputil.Decode(w, r, &s) {
		return
	}
	if err := h.engine.Segments.Add(s); err != nil {
		httputil.Fail(w, err, segmentErrors)
		return
	}
	added, _ := h.engine.Segments.Segment(s.ID)
	httputil.Created(w, added)
}

// DetermineSegment classifies one preference profile.
//
//	POST /api/segments/determine
func (h *Handlers) DetermineSegment(w http.ResponseWriter, r *http.Request) {
	var p domain.Preferences
	if !httputil.Decode(w, r, &p) {
		return
	}
	httputil.OK(w, h.engine.Segments.Determine(p.WithDefaults()))
}

// SegmentStatistics counts profiles per segment.
//
//	POST /api/segments/statistics
func (h *Handlers) SegmentStatistics(w http.ResponseWriter, r *http.Request) {
	var profiles []domain.Preferences
	if !httputil.Decode(w, r, &profiles) {
		return
	}
	for i := range profiles {
		profiles[i] = profiles[i].WithDefaults()
	}
	httputil.OK(w, map[string]any{"counts": h.engine.Segments.Statistics(profiles), "total": len(profiles)})
}

func (h *Handlers) SegmentPerformance(w http.ResponseWriter, r *http.Request) {
	perf := h.engine.Analytics.SegmentPerformance()
	httputil.OK(w, map[string]any{"segments": perf, "total": len(perf)})
}

// SegmentRecommendations returns optimization advice for a segment's campaigns.
//
//	GET /api/segments/{id}/recommendations
func (h *Handlers) SegmentRecommendations(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	httputil.OK(w, map[string]any{
		"segment_id":      id,
		"recommendations": h.engine.Analytics.Recommendations(id),
	})
}

type personalizeRequest struct {
	Repositories []domain.Repository `json:"repositories"`
	Preferences  *domain.Preferences `json:"preferences,omitempty"`
	Limit        int                 `json:"limit,omitempty"`
}

// Personalize previews the ranked content for one profile.
//
//	POST /api/personalize
func (h *Handlers) Personalize(w http.ResponseWriter, r *http.Request) {
	var req personalizeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	prefs := domain.NewPreferences()
	if req.Preferences != nil {
		prefs = req.Preferences.WithDefaults()
	}

	content, err := h.engine.Personalizer.Personalize(req.Repositories, prefs)
	if errors.Is(err, personalization.ErrNoRepositories) {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if req.Limit > 0 && req.Limit < len(content.Repositories) {
		content.Repositories = content.Repositories[:req.Limit]
		content.Scores = content.Scores[:req.Limit]
	}
	httputil.OK(w, content)
}

// Send runs a personalized send cycle synchronously.
//
//	POST /api/send
func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "sending is not configured")
		return
	}
	var req newsletter.SendRequest
	if !httputil.Decode(w, r, &req) || !requireField(w, "campaign_name", req.CampaignName) {
		return
	}
	res, err := h.sender.Send(r.Context(), req)
	if err != nil {
		httputil.Fail(w, err, sendErrors)
		return
	}
	httputil.OK(w, map[string]any{
		"result":                    res,
		"success_rate":              res.SuccessRate(),
		"avg_personalization_score": res.AvgPersonalizationScore(),
	})
}
