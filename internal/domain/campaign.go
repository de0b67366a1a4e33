package domain

import (
	"time"
)

// SegmentIDKey is the segment criteria field campaigns are grouped by.
const SegmentIDKey = "segment_id"

// Campaign is one newsletter send whose engagement is tracked.
// SentAt stays nil until the campaign is marked sent; TotalRecipients is
// frozen at that moment and is the denominator of every rate.
type Campaign struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	SubjectLine     string         `json:"subject_line"`
	TemplateVersion string         `json:"template_version"`
	SegmentCriteria map[string]any `json:"segment_criteria,omitempty"`
	SentAt          *time.Time     `json:"sent_at,omitempty"`
	TotalRecipients int            `json:"total_recipients"`
	CreatedAt       time.Time      `json:"created_at"`
}

// IsSent returns true once the campaign has been marked sent.
func (c *Campaign) IsSent() bool {
	return c.SentAt != nil
}

// SegmentID returns the segment the campaign targeted, if it recorded one.
func (c *Campaign) SegmentID() (string, bool) {
	if c.SegmentCriteria == nil {
		return "", false
	}
	id, ok := c.SegmentCriteria[SegmentIDKey].(string)
	return id, ok
}

// UTMParameters are the analytics query parameters appended to newsletter links.
type UTMParameters struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// LinkAnalytics summarizes clicks on one URL of a campaign.
type LinkAnalytics struct {
	URL          string  `json:"url"`
	ClickCount   int     `json:"click_count"`
	UniqueClicks int     `json:"unique_clicks"`
	ClickRate    float64 `json:"click_rate"`
}

// TimelinePoint counts engagements of one kind within one hour.
type TimelinePoint struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      EngagementKind `json:"event_type"`
	Count     int            `json:"count"`
}

// CampaignAnalytics is the funnel report of a single campaign.
type CampaignAnalytics struct {
	CampaignID        string          `json:"campaign_id"`
	CampaignName      string          `json:"campaign_name"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	TotalRecipients   int             `json:"total_recipients"`
	DeliveredCount    int             `json:"delivered_count"`
	OpenedCount       int             `json:"opened_count"`
	ClickedCount      int             `json:"clicked_count"`
	BouncedCount      int             `json:"bounced_count"`
	ComplainedCount   int             `json:"complained_count"`
	UnsubscribedCount int             `json:"unsubscribed_count"`
	ConvertedCount    int             `json:"converted_count"`
	DeliveryRate      float64         `json:"delivery_rate"`
	OpenRate          float64         `json:"open_rate"`
	ClickRate         float64         `json:"click_rate"`
	ClickToOpenRate   float64         `json:"click_to_open_rate"`
	BounceRate        float64         `json:"bounce_rate"`
	ComplaintRate     float64         `json:"complaint_rate"`
	UnsubscribeRate   float64         `json:"unsubscribe_rate"`
	ConversionRate    float64         `json:"conversion_rate"`
	EngagementScore   float64         `json:"engagement_score"`
	TopClickedLinks   []LinkAnalytics `json:"top_clicked_links"`
	Timeline          []TimelinePoint `json:"engagement_timeline"`
}

// CampaignComparison ranks several campaigns by engagement score.
type CampaignComparison struct {
	Campaigns               []CampaignAnalytics `json:"campaigns"`
	Winner                  *string             `json:"winner"`
	StatisticalSignificance float64             `json:"statistical_significance"`
	ImprovementMetrics      map[string]float64  `json:"improvement_metrics"`
}

// SegmentPerformance averages campaign results for one targeted segment.
type SegmentPerformance struct {
	SegmentID               string  `json:"segment_id"`
	SegmentName             string  `json:"segment_name"`
	TotalCampaigns          int     `json:"total_campaigns"`
	AvgOpenRate             float64 `json:"avg_open_rate"`
	AvgClickRate            float64 `json:"avg_click_rate"`
	AvgConversionRate       float64 `json:"avg_conversion_rate"`
	AvgEngagementScore      float64 `json:"avg_engagement_score"`
	BestPerformingCampaign  *string `json:"best_performing_campaign"`
	WorstPerformingCampaign *string `json:"worst_performing_campaign"`
}
