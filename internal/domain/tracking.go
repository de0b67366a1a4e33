package domain

import (
	"fmt"
	"strings"
	"time"
)

// EngagementKind enumerates the per-campaign engagement events.
type EngagementKind string

const (
	EngagementSent         EngagementKind = "sent"
	EngagementDelivered    EngagementKind = "delivered"
	EngagementOpened       EngagementKind = "opened"
	EngagementClicked      EngagementKind = "clicked"
	EngagementBounced      EngagementKind = "bounced"
	EngagementComplained   EngagementKind = "complained"
	EngagementUnsubscribed EngagementKind = "unsubscribed"
	EngagementConverted    EngagementKind = "converted"
)

// EngagementKinds lists every kind in funnel order.
var EngagementKinds = []EngagementKind{
	EngagementSent,
	EngagementDelivered,
	EngagementOpened,
	EngagementClicked,
	EngagementBounced,
	EngagementComplained,
	EngagementUnsubscribed,
	EngagementConverted,
}

// ParseEngagementKind accepts the lowercase kind names, case-insensitively.
func ParseEngagementKind(s string) (EngagementKind, error) {
	k := EngagementKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EngagementKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown engagement type %q", s)
}

// Engagement is one entry of a campaign's append-only engagement log.
// Payload carries free-form fields such as "url" for clicks.
type Engagement struct {
	ID         string         `json:"id"`
	CampaignID string         `json:"campaign_id"`
	Recipient  string         `json:"recipient"`
	UserID     *int64         `json:"user_id,omitempty"`
	Kind       EngagementKind `json:"event_type"`
	Payload    map[string]any `json:"event_data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	UserAgent  string         `json:"user_agent,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
}

// URL returns the clicked link recorded in the payload, if any.
func (e *Engagement) URL() (string, bool) {
	if e.Payload == nil {
		return "", false
	}
	u, ok := e.Payload["url"].(string)
	return u, ok && u != ""
}
