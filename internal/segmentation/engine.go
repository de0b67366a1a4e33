package segmentation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

// ErrInvalidSegment is returned when a segment cannot be added to the catalog.
var ErrInvalidSegment = errors.New("invalid segment")

// Engine holds the segment catalog and evaluates profiles against it.
// All public methods are safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	segments []domain.Segment
	now      func() time.Time
	log      *logger.Logger
}

// NewEngine creates an engine with the default catalog.
func NewEngine() *Engine {
	e := NewEmptyEngine()
	e.segments = DefaultSegments(time.Now().UTC())
	return e
}

// NewEmptyEngine creates an engine with no segments.
func NewEmptyEngine() *Engine {
	return &Engine{
		now: time.Now,
		log: logger.With("component", "segmentation"),
	}
}

// SetClock replaces the time source used to compute signup age.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Segments returns a copy of the catalog in evaluation order.
func (e *Engine) Segments() []domain.Segment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Segment, len(e.segments))
	copy(out, e.segments)
	return out
}

// Segment returns the first catalog entry with the given id.
func (e *Engine) Segment(id string) (domain.Segment, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range e.segments {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Segment{}, false
}

// Add appends a segment to the catalog. Ids are not deduplicated: an
// earlier segment with the same id keeps winning ties.
func (e *Engine) Add(s domain.Segment) error {
	if problems := ValidateCriteria(s); len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSegment, problems)
	}

	e.mu.Lock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = e.now().UTC()
	}
	e.segments = append(e.segments, s)
	e.mu.Unlock()

	e.log.Info("segment added", "segment_id", s.ID)
	return nil
}

// Import replaces the catalog, as when restoring a snapshot. An empty list
// keeps the current catalog.
func (e *Engine) Import(segments []domain.Segment) {
	if len(segments) == 0 {
		return
	}
	cp := make([]domain.Segment, len(segments))
	copy(cp, segments)

	e.mu.Lock()
	e.segments = cp
	e.mu.Unlock()
	e.log.Info("segment catalog restored", "segments", len(cp))
}

// ValidateCriteria lists structural problems with a segment definition.
func ValidateCriteria(s domain.Segment) []string {
	var problems []string
	if s.ID == "" {
		problems = append(problems, "id is required")
	}
	c := s.Criteria
	if c.EngagementScoreMin != nil && c.EngagementScoreMax != nil && *c.EngagementScoreMin > *c.EngagementScoreMax {
		problems = append(problems, "engagement_score_min exceeds engagement_score_max")
	}
	if c.SignupDaysAgoMin != nil && c.SignupDaysAgoMax != nil && *c.SignupDaysAgoMin > *c.SignupDaysAgoMax {
		problems = append(problems, "signup_days_ago_min exceeds signup_days_ago_max")
	}
	return problems
}

// MatchScore returns the fraction of present criteria the profile satisfies,
// or 0 when no criterion applies. Signup-age criteria only apply to profiles
// that carry a signup date.
func (e *Engine) MatchScore(c domain.SegmentCriteria, p domain.Preferences) float64 {
	e.mu.RLock()
	now := e.now()
	e.mu.RUnlock()
	return matchScore(c, p, now)
}

func matchScore(c domain.SegmentCriteria, p domain.Preferences, now time.Time) float64 {
	var matched, total int
	check := func(ok bool) {
		total++
		if ok {
			matched++
		}
	}

	if c.Languages != nil {
		check(containsAny(c.Languages, p.PreferredLanguages))
	}
	if c.EngagementScoreMin != nil {
		check(p.EngagementScore >= *c.EngagementScoreMin)
	}
	if c.EngagementScoreMax != nil {
		check(p.EngagementScore <= *c.EngagementScoreMax)
	}
	if c.Frequency != nil {
		check(p.Frequency == *c.Frequency)
	}
	if c.TechInterests != nil {
		check(containsAny(c.TechInterests, p.TechInterests))
	}
	if p.SignupDate != nil {
		days := DaysSince(*p.SignupDate, now)
		if c.SignupDaysAgoMin != nil {
			check(days >= *c.SignupDaysAgoMin)
		}
		if c.SignupDaysAgoMax != nil {
			check(days <= *c.SignupDaysAgoMax)
		}
	}

	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

// DaysSince returns the whole days elapsed between t and now.
func DaysSince(t, now time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}

// Determine returns the catalog segment with the strictly highest positive
// score. Ties keep the earlier segment; no match yields the general segment.
func (e *Engine) Determine(p domain.Preferences) domain.Segment {
	e.mu.RLock()
	segments := make([]domain.Segment, len(e.segments))
	copy(segments, e.segments)
	now := e.now()
	e.mu.RUnlock()

	return determine(segments, p, now)
}

func determine(segments []domain.Segment, p domain.Preferences, now time.Time) domain.Segment {
	best := -1
	bestScore := 0.0
	for i, s := range segments {
		if score := matchScore(s.Criteria, p, now); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return domain.GeneralSegment(now.UTC())
	}
	return segments[best]
}

// Statistics counts how many of the given profiles fall into each segment.
func (e *Engine) Statistics(profiles []domain.Preferences) map[string]int {
	e.mu.RLock()
	segments := make([]domain.Segment, len(e.segments))
	copy(segments, e.segments)
	now := e.now()
	e.mu.RUnlock()

	counts := make(map[string]int)
	for _, p := range profiles {
		counts[determine(segments, p, now).ID]++
	}
	return counts
}

func containsAny(haystack, needles []string) bool {
	for _, n := range needles {
		for _, h := range haystack {
			if n == h {
				return true
			}
		}
	}
	return false
}
