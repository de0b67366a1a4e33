package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

// TrackingEvent is one recorded interaction, as queued between the HTTP
// handler and the consumer.
type TrackingEvent struct {
	Kind         domain.EngagementKind `json:"event_type"`
	CampaignID   string                `json:"campaign_id"`
	Recipient    string                `json:"recipient"`
	LinkID       string                `json:"link_id,omitempty"`
	URL          string                `json:"url,omitempty"`
	ExperimentID string                `json:"experiment_id,omitempty"`
	VariantID    string                `json:"variant_id,omitempty"`
	IPAddress    string                `json:"ip_address"`
	UserAgent    string                `json:"user_agent"`
	Timestamp    time.Time             `json:"timestamp"`
}

func newEvent(kind domain.EngagementKind, l Link, ip, ua string, at time.Time) TrackingEvent {
	return TrackingEvent{
		Kind:         kind,
		CampaignID:   l.CampaignID,
		Recipient:    l.Recipient,
		LinkID:       l.LinkID,
		URL:          l.URL,
		ExperimentID: l.ExperimentID,
		VariantID:    l.VariantID,
		IPAddress:    ip,
		UserAgent:    ua,
		Timestamp:    at,
	}
}

// Sink accepts tracking events from the HTTP handler.
type Sink interface {
	Publish(ctx context.Context, evt TrackingEvent) error
}

// EngagementTracker is the campaign side of a recorded event.
type EngagementTracker interface {
	TrackEngagement(e domain.Engagement) (string, error)
}

// ExperimentRecorder is the experiment side of a recorded event.
type ExperimentRecorder interface {
	RecordEvent(experimentID, variantID, recipient string, userID *int64, kind domain.EventKind, payload map[string]any) (string, error)
}

var experimentKinds = map[domain.EngagementKind]domain.EventKind{
	domain.EngagementOpened:       domain.EventEmailOpened,
	domain.EngagementClicked:      domain.EventEmailClicked,
	domain.EngagementUnsubscribed: domain.EventUnsubscribe,
	domain.EngagementConverted:    domain.EventConversion,
}

// Recorder applies tracking events to the engine. It is also a Sink, for
// deployments without a queue.
type Recorder struct {
	campaigns   EngagementTracker
	experiments ExperimentRecorder
	log         *logger.Logger
}

// NewRecorder creates a recorder. experiments may be nil.
func NewRecorder(campaigns EngagementTracker, experiments ExperimentRecorder) *Recorder {
	return &Recorder{
		campaigns:   campaigns,
		experiments: experiments,
		log:         logger.With("component", "tracking"),
	}
}

// Publish records evt synchronously.
func (r *Recorder) Publish(_ context.Context, evt TrackingEvent) error {
	return r.Record(evt)
}

// Record tracks the campaign engagement, then the experiment event when
// the link carried an assignment. A failed experiment event is logged but
// does not fail the engagement.
func (r *Recorder) Record(evt TrackingEvent) error {
	payload := map[string]any{}
	if evt.URL != "" {
		payload["url"] = evt.URL
	}
	if evt.LinkID != "" {
		payload["link_id"] = evt.LinkID
	}

	_, err := r.campaigns.TrackEngagement(domain.Engagement{
		CampaignID: evt.CampaignID,
		Recipient:  evt.Recipient,
		Kind:       evt.Kind,
		Payload:    payload,
		Timestamp:  evt.Timestamp,
		UserAgent:  evt.UserAgent,
		IPAddress:  evt.IPAddress,
	})
	if err != nil {
		return fmt.Errorf("tracking %s: %w", evt.Kind, err)
	}

	kind, ok := experimentKinds[evt.Kind]
	if ok && r.experiments != nil && evt.ExperimentID != "" && evt.VariantID != "" {
		payload["campaign_id"] = evt.CampaignID
		if _, err := r.experiments.RecordEvent(evt.ExperimentID, evt.VariantID, evt.Recipient, nil, kind, payload); err != nil {
			r.log.Warn("experiment event dropped", "experiment_id", evt.ExperimentID, "kind", string(kind), "error", err)
		}
	}
	return nil
}
