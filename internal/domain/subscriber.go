package domain

import "time"

// Default preference values applied when a subscriber has not declared them.
const (
	DefaultFrequency       = "weekly"
	DefaultEngagementScore = 0.5
)

// Preferences is a recipient's declared and inferred personalization profile.
//
// EngagementScore is the subscription-level score maintained outside the
// engine. It is not the per-campaign CampaignAnalytics.EngagementScore.
type Preferences struct {
	PreferredLanguages []string   `json:"preferred_languages"`
	TechInterests      []string   `json:"tech_stack_interests"`
	Frequency          string     `json:"frequency"`
	EngagementScore    float64    `json:"engagement_score"`
	UserID             *int64     `json:"user_id,omitempty"`
	SignupDate         *time.Time `json:"signup_date,omitempty"`
}

// WithDefaults fills an unset frequency. A zero engagement score is kept as
// declared; callers building profiles from scratch use NewPreferences.
func (p Preferences) WithDefaults() Preferences {
	if p.Frequency == "" {
		p.Frequency = DefaultFrequency
	}
	return p
}

// NewPreferences returns a profile with the default frequency and engagement score.
func NewPreferences() Preferences {
	return Preferences{
		PreferredLanguages: []string{},
		TechInterests:      []string{},
		Frequency:          DefaultFrequency,
		EngagementScore:    DefaultEngagementScore,
	}
}

// Subscriber is a newsletter recipient handed to a send cycle.
type Subscriber struct {
	Email       string       `json:"email"`
	UserID      *int64       `json:"user_id,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}
