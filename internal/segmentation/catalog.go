// Package segmentation classifies recipient preference profiles into the
// best-matching audience segment.
//
// The catalog is built explicitly per Engine, so several engines with
// different catalogs can coexist.
package segmentation

import (
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// Default segment identifiers.
const (
	SegmentNewUsers         = "new_users"
	SegmentHighlyEngaged    = "highly_engaged"
	SegmentJavaScriptDevs   = "javascript_developers"
	SegmentRustDevs         = "rust_developers"
	SegmentPythonDevs       = "python_developers"
	SegmentDailySubscribers = "daily_subscribers"
	SegmentLowEngagement    = "low_engagement"
)

func float(v float64) *float64 { return &v }
func integer(v int) *int        { return &v }
func str(v string) *string      { return &v }

// DefaultSegments returns the built-in catalog in evaluation order.
func DefaultSegments(now time.Time) []domain.Segment {
	return []domain.Segment{
		{
			ID:          SegmentNewUsers,
			Name:        "New Users",
			Description: "Users who signed up in the last 7 days",
			Criteria: domain.SegmentCriteria{
				SignupDaysAgoMin: integer(0),
				SignupDaysAgoMax: integer(7),
			},
			CreatedAt: now,
		},
		{
			ID:          SegmentHighlyEngaged,
			Name:        "Highly Engaged",
			Description: "Users with high engagement scores",
			Criteria: domain.SegmentCriteria{
				EngagementScoreMin: float(0.7),
			},
			CreatedAt: now,
		},
		{
			ID:          SegmentJavaScriptDevs,
			Name:        "JavaScript Developers",
			Description: "Users interested in JavaScript and related technologies",
			Criteria: domain.SegmentCriteria{
				Languages:     []string{"JavaScript", "TypeScript"},
				TechInterests: []string{"React", "Node.js", "Vue", "Angular"},
			},
			CreatedAt: now,
		},
		{
			ID:          SegmentRustDevs,
			Name:        "Rust Developers",
			Description: "Users interested in Rust and systems programming",
			Criteria: domain.SegmentCriteria{
				Languages:     []string{"Rust", "C++", "C"},
				TechInterests: []string{"WebAssembly", "Systems Programming", "Performance"},
			},
			CreatedAt: now,
		},
		{
			ID:          SegmentPythonDevs,
			Name:        "Python Developers",
			Description: "Users interested in Python and data science",
			Criteria: domain.SegmentCriteria{
				Languages:     []string{"Python"},
				TechInterests: []string{"Machine Learning", "Data Science", "Django", "FastAPI"},
			},
			CreatedAt: now,
		},
		{
			ID:          SegmentDailySubscribers,
			Name:        "Daily Subscribers",
			Description: "Users who prefer daily newsletter frequency",
			Criteria: domain.SegmentCriteria{
				Frequency: str("daily"),
			},
			CreatedAt: now,
		},
		{
			ID:          SegmentLowEngagement,
			Name:        "Low Engagement",
			Description: "Users with low engagement who might need re-engagement",
			Criteria: domain.SegmentCriteria{
				EngagementScoreMin: float(0.0),
				EngagementScoreMax: float(0.3),
				SignupDaysAgoMin:   integer(30),
			},
			CreatedAt: now,
		},
	}
}
