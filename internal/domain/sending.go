package domain

import "time"

// Repository is a trending project that can be featured in a newsletter.
type Repository struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	FullName     string    `json:"full_name"`
	Description  string    `json:"description,omitempty"`
	Stars        int       `json:"stars"`
	Forks        int       `json:"forks"`
	Language     string    `json:"language,omitempty"`
	Author       string    `json:"author"`
	URL          string    `json:"url"`
	TrendingDate time.Time `json:"trending_date"`
}

// PersonalizedContent is the ranked content chosen for one recipient.
type PersonalizedContent struct {
	Repositories         []Repository         `json:"repositories"`
	Scores               []float64            `json:"scores"`
	PersonalizationScore float64              `json:"personalization_score"`
	Level                PersonalizationLevel `json:"personalization_level"`
	Reasons              []string             `json:"reasons"`
	Segment              Segment              `json:"segment"`
}

// EmailMessage is the fully-resolved newsletter ready for a transport.
// By the time a message reaches this struct, subject rendering, variant
// configuration and personalization are complete.
type EmailMessage struct {
	CampaignID   string              `json:"campaign_id"`
	ExperimentID string              `json:"experiment_id,omitempty"`
	VariantID    string              `json:"variant_id,omitempty"`
	Email        string              `json:"email"`
	FromName     string              `json:"from_name"`
	FromEmail    string              `json:"from_email"`
	Subject      string              `json:"subject"`
	HTMLContent  string              `json:"html_content"`
	TextContent  string              `json:"text_content"`
	Template     TemplateConfig      `json:"template"`
	Content      PersonalizedContent `json:"content"`
	Headers      map[string]string   `json:"headers,omitempty"`
}

// TemplateConfig is the layout configuration resolved from a variant.
type TemplateConfig struct {
	Version            string `json:"template_version"`
	RepositoryCount    int    `json:"repository_count"`
	IncludeSocialProof bool   `json:"include_social_proof"`
	CTAText            string `json:"cta_text"`
	SendTimeHour       *int   `json:"send_time_hour,omitempty"`
}

// SendResult is returned by a transport after attempting delivery.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
	Error     string    `json:"error,omitempty"`
}
