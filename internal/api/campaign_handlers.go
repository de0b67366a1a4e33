package api

import (
	"net/http"
	"time"

	"github.com/ignite/newsletter-engine/internal/analytics"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/pkg/httputil"
)

var campaignErrors = []httputil.Mapping{
	{Err: analytics.ErrCampaignNotFound, Status: http.StatusNotFound, Code: "not_found"},
	{Err: analytics.ErrAlreadySent, Status: http.StatusConflict, Code: "already_sent"},
	{Err: analytics.ErrInvalidEngagement, Status: http.StatusBadRequest, Code: "invalid_engagement"},
	{Err: analytics.ErrInvalidURL, Status: http.StatusBadRequest, Code: "invalid_url"},
}

type createCampaignRequest struct {
	Name            string         `json:"name"`
	SubjectLine     string         `json:"subject_line"`
	TemplateVersion string         `json:"template_version"`
	SegmentCriteria map[string]any `json:"segment_criteria,omitempty"`
}

// CreateCampaign registers a campaign for tracking.
//
//	POST /api/campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !httputil.Decode(w, r, &req) || !requireField(w, "name", req.Name) {
		return
	}
	id := h.engine.Analytics.CreateCampaign(req.Name, req.SubjectLine, req.TemplateVersion, req.SegmentCriteria)
	c, err := h.engine.Analytics.Campaign(id)
	if err != nil {
		httputil.Fail(w, err, campaignErrors)
		return
	}
	httputil.Created(w, c)
}

// AllCampaignAnalytics reports every campaign, newest first.
//
//	GET /api/campaigns
func (h *Handlers) AllCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	all := h.engine.Analytics.AllAnalytics()
	httputil.OK(w, map[string]any{"campaigns": all, "total": len(all)})
}

func (h *Handlers) CampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.Analytics.Analytics(idParam(r))
	if err != nil {
		httputil.Fail(w, err, campaignErrors)
		return
	}
	httputil.OK(w, a)
}

type markSentRequest struct {
	TotalRecipients int `json:"total_recipients"`
}

// MarkCampaignSent freezes the recipient count.
//
//	POST /api/campaigns/{id}/sent
func (h *Handlers) MarkCampaignSent(w http.ResponseWriter, r *http.Request) {
	var req markSentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	id := idParam(r)
	if err := h.engine.Analytics.MarkSent(id, req.TotalRecipients); err != nil {
		httputil.Fail(w, err, campaignErrors)
		return
	}
	c, err := h.engine.Analytics.Campaign(id)
	if err != nil {
		httputil.Fail(w, err, campaignErrors)
		return
	}
	httputil.OK(w, c)
}

type engagementRequest struct {
	Recipient string         `json:"recipient"`
	UserID    *int64         `json:"user_id,omitempty"`
	Kind      string         `json:"event_type"`
	Payload   map[string]any `json:"event_data,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
}

// TrackEngagement appends one engagement. Client address and agent default
// to the request's own.
//
//	POST /api/campaigns/{id}/engagements
func (h *Handlers) TrackEngagement(w http.ResponseWriter, r *http.Request) {
	var req engagementRequest
	if !httputil.Decode(w, r, &req) || !requireField(w, "recipient", req.Recipient) {
		return
	}
	kind, err := domain.ParseEngagementKind(req.Kind)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	e := domain.Engagement{
		CampaignID: idParam(r),
		Recipient:  req.Recipient,
		UserID:     req.UserID,
		Kind:       kind,
		Payload:    req.Payload,
		UserAgent:  req.UserAgent,
		IPAddress:  req.IPAddress,
	}
	if req.Timestamp != nil {
		e.Timestamp = req.Timestamp.UTC()
	}
	if e.UserAgent == "" {
		e.UserAgent = r.UserAgent()
	}
	if e.IPAddress == "" {
		e.IPAddress = r.RemoteAddr
	}

	id, err := h.engine.Analytics.TrackEngagement(e)
	if err != nil {
		httputil.Fail(w, err, campaignErrors)
		return
	}
	httputil.Created(w, map[string]string{"id": id})
}

// CampaignUTM returns the UTM parameters for a link and, when url is given,
// the tagged URL.
//
//	GET /api/campaigns/{id}/utm?link=header&url=https://example.com
func (h *Handlers) CampaignUTM(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	link := q.Get("link")
	if link == "" {
		link = "newsletter"
	}
	params, err := h.engine.Analytics.UTM(idParam(r), link)
	if err != nil {
		httputil.Fail(w, err, campaignErrors)
		return
	}

	resp := map[string]any{"parameters": params}
	if raw := q.Get("url"); raw != "" {
		tagged, err := analytics.AddUTM(raw, params)
		if err != nil {
			httputil.Fail(w, err, campaignErrors)
			return
		}
		resp["url"] = tagged
	}
	httputil.OK(w, resp)
}

type compareRequest struct {
	CampaignIDs []string `json:"campaign_ids"`
}

// CompareCampaigns ranks campaigns by engagement score.
//
//	POST /api/campaigns/compare
func (h *Handlers) CompareCampaigns(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.CampaignIDs) < 2 {
		httputil.BadRequest(w, "at least two campaign_ids are required")
		return
	}
	cmp, err := h.engine.Analytics.Compare(req.CampaignIDs)
	if err != nil {
		httputil.Fail(w, err, campaignErrors)
		return
	}
	httputil.OK(w, cmp)
}
