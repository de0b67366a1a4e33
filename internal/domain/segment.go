package domain

import "time"

// GeneralSegmentID is the fallback segment for recipients matching nothing.
const GeneralSegmentID = "general"

// SegmentCriteria describes which preference profiles belong to a segment.
// Only non-nil fields take part in matching.
type SegmentCriteria struct {
	Languages          []string `json:"languages,omitempty"`
	EngagementScoreMin *float64 `json:"engagement_score_min,omitempty"`
	EngagementScoreMax *float64 `json:"engagement_score_max,omitempty"`
	Frequency          *string  `json:"frequency,omitempty"`
	TechInterests      []string `json:"tech_interests,omitempty"`
	SignupDaysAgoMin   *int     `json:"signup_days_ago_min,omitempty"`
	SignupDaysAgoMax   *int     `json:"signup_days_ago_max,omitempty"`
}

// IsEmpty reports whether no criterion is present.
func (c SegmentCriteria) IsEmpty() bool {
	return c.Languages == nil && c.EngagementScoreMin == nil && c.EngagementScoreMax == nil &&
		c.Frequency == nil && c.TechInterests == nil && c.SignupDaysAgoMin == nil && c.SignupDaysAgoMax == nil
}

// Segment is a named audience classification.
type Segment struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Criteria    SegmentCriteria `json:"criteria"`
	CreatedAt   time.Time       `json:"created_at"`
}

// GeneralSegment is returned when no catalog segment matches a profile.
func GeneralSegment(now time.Time) Segment {
	return Segment{
		ID:          GeneralSegmentID,
		Name:        "General",
		Description: "General audience",
		CreatedAt:   now,
	}
}
