package domain

import (
	"strings"
	"time"
)

// ExperimentStatus enumerates the lifecycle states of an A/B experiment.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentArchived  ExperimentStatus = "archived"
)

// PersonalizationLevel controls how much per-recipient tailoring a variant applies.
type PersonalizationLevel string

const (
	PersonalizationNone     PersonalizationLevel = "none"
	PersonalizationBasic    PersonalizationLevel = "basic"
	PersonalizationAdvanced PersonalizationLevel = "advanced"
	PersonalizationHigh     PersonalizationLevel = "highly_personalized"
)

// Experiment is an A/B test over newsletter variants.
type Experiment struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Status            ExperimentStatus `json:"status"`
	Variants          []Variant        `json:"variants"`
	TrafficAllocation float64          `json:"traffic_allocation"`
	TargetMetric      string           `json:"target_metric"`
	MinimumSampleSize int              `json:"minimum_sample_size"`
	ConfidenceLevel   float64          `json:"confidence_level"`
	CreatedAt         time.Time        `json:"created_at"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	EndedAt           *time.Time       `json:"ended_at,omitempty"`
}

// IsActive reports whether recipients may currently be assigned.
func (e *Experiment) IsActive() bool {
	return e.Status == ExperimentRunning
}

// Variant returns the variant with the given id.
func (e *Experiment) Variant(id string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Control returns the first declared variant.
func (e *Experiment) Control() Variant {
	if len(e.Variants) == 0 {
		return Variant{}
	}
	return e.Variants[0]
}

// Variant is one configuration alternative within an experiment.
type Variant struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	TrafficWeight float64       `json:"traffic_weight"`
	Config        VariantConfig `json:"configuration"`
}

// VariantConfig is the content configuration a variant applies to a send.
// Nil pointers mean "use the newsletter default".
type VariantConfig struct {
	SubjectLine          *string               `json:"subject_line,omitempty"`
	TemplateVersion      *string               `json:"template_version,omitempty"`
	SendTimeHour         *int                  `json:"send_time_hour,omitempty"`
	PersonalizationLevel *PersonalizationLevel `json:"personalization_level,omitempty"`
	RepositoryCount      *int                  `json:"repository_count,omitempty"`
	IncludeSocialProof   *bool                 `json:"include_social_proof,omitempty"`
	CTAText              *string               `json:"cta_text,omitempty"`
	Custom               map[string]any        `json:"custom_properties,omitempty"`
}

// Assignment maps a recipient to a variant for one experiment.
type Assignment struct {
	ExperimentID string    `json:"experiment_id"`
	VariantID    string    `json:"variant_id"`
	Recipient    string    `json:"recipient"`
	UserID       *int64    `json:"user_id,omitempty"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// EventKind identifies an experiment event. Custom events are encoded as
// "custom:<name>".
type EventKind string

const (
	EventEmailSent    EventKind = "email_sent"
	EventEmailOpened  EventKind = "email_opened"
	EventEmailClicked EventKind = "email_clicked"
	EventLinkClicked  EventKind = "link_clicked"
	EventConversion   EventKind = "conversion"
	EventUnsubscribe  EventKind = "unsubscribe"

	customEventPrefix = "custom:"
)

// CustomEvent builds the kind for a caller-defined event name.
func CustomEvent(name string) EventKind {
	return EventKind(customEventPrefix + name)
}

// IsCustom reports whether the kind is a caller-defined event.
func (k EventKind) IsCustom() bool {
	return strings.HasPrefix(string(k), customEventPrefix)
}

// CustomName returns the caller-defined name of a custom event.
func (k EventKind) CustomName() string {
	return strings.TrimPrefix(string(k), customEventPrefix)
}

// Valid reports whether the kind is one of the fixed kinds or a named custom event.
func (k EventKind) Valid() bool {
	switch k {
	case EventEmailSent, EventEmailOpened, EventEmailClicked, EventLinkClicked, EventConversion, EventUnsubscribe:
		return true
	}
	return k.IsCustom() && k.CustomName() != ""
}

// ExperimentEvent is one entry of the append-only experiment event log.
type ExperimentEvent struct {
	ID           string         `json:"id"`
	ExperimentID string         `json:"experiment_id"`
	VariantID    string         `json:"variant_id"`
	Recipient    string         `json:"recipient"`
	UserID       *int64         `json:"user_id,omitempty"`
	Kind         EventKind      `json:"event_type"`
	Payload      map[string]any `json:"event_data,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// ConfidenceInterval is a closed interval of a rate.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// VariantResult is the per-variant section of an experiment analysis.
type VariantResult struct {
	VariantID          string             `json:"variant_id"`
	VariantName        string             `json:"variant_name"`
	SampleSize         int                `json:"sample_size"`
	ConversionRate     float64            `json:"conversion_rate"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	Metrics            map[string]float64 `json:"metrics"`
}

// ExperimentResults is the outcome of analyzing an experiment.
type ExperimentResults struct {
	ExperimentID             string          `json:"experiment_id"`
	Variants                 []VariantResult `json:"variant_results"`
	Winner                   *string         `json:"winner"`
	Confidence               float64         `json:"confidence"`
	StatisticallySignificant bool            `json:"statistical_significance"`
	AnalyzedAt               time.Time       `json:"analyzed_at"`
}
