// Package personalization ranks candidate repositories for one recipient.
package personalization

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// ErrNoRepositories is returned when there is nothing to personalize.
var ErrNoRepositories = errors.New("no repositories to personalize")

const (
	baseScore      = 0.1
	languageBonus  = 0.4
	interestBonus  = 0.2
	engagementLift = 0.2

	// MaxRepositories is how many ranked repositories a newsletter carries.
	MaxRepositories = 10
	// ReasonDepth is how many of the top repositories contribute reasons and
	// the overall personalization score.
	ReasonDepth = 5
)

// Segmenter classifies a profile into an audience segment.
type Segmenter interface {
	Determine(p domain.Preferences) domain.Segment
}

// Scorer scores repositories against recipient preferences.
type Scorer struct {
	segments Segmenter

	mu  sync.RWMutex
	now func() time.Time
}

// NewScorer creates a scorer that tags results with segments from s.
func NewScorer(s Segmenter) *Scorer {
	return &Scorer{segments: s, now: time.Now}
}

// SetClock replaces the time source used for trending recency.
func (s *Scorer) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Scorer) clock() time.Time {
	s.mu.RLock()
	now := s.now
	s.mu.RUnlock()
	return now()
}

// Score rates one repository for the given preferences and explains why.
func (s *Scorer) Score(repo domain.Repository, p domain.Preferences) (float64, []string) {
	score := baseScore
	var reasons []string

	if repo.Language != "" && contains(p.PreferredLanguages, repo.Language) {
		score += languageBonus
		reasons = append(reasons, fmt.Sprintf("Matches your %s preference", repo.Language))
	}

	desc := strings.ToLower(repo.Description)
	if desc != "" {
		for _, interest := range p.TechInterests {
			if interest == "" {
				continue
			}
			if strings.Contains(desc, strings.ToLower(interest)) {
				score += interestBonus
				reasons = append(reasons, fmt.Sprintf("Related to %s", interest))
			}
		}
	}

	score += popularityBonus(repo.Stars)
	if repo.Stars > 1000 {
		reasons = append(reasons, fmt.Sprintf("Popular project with %d stars", repo.Stars))
	}

	switch days := daysBetween(repo.TrendingDate, s.clock()); {
	case days <= 1:
		score += 0.2
		reasons = append(reasons, "Recently trending")
	case days <= 3:
		score += 0.1
		reasons = append(reasons, "Trending this week")
	}

	score *= 1 + p.EngagementScore*engagementLift
	return score, reasons
}

func popularityBonus(stars int) float64 {
	switch {
	case stars <= 100:
		return 0
	case stars <= 1000:
		return 0.1
	case stars <= 5000:
		return 0.2
	case stars <= 10000:
		return 0.3
	default:
		return 0.4
	}
}

// Personalize ranks candidates for p and keeps the best MaxRepositories.
// The overall score is the sum of the top ReasonDepth scores divided by
// ReasonDepth, so short lists are not inflated.
func (s *Scorer) Personalize(candidates []domain.Repository, p domain.Preferences) (domain.PersonalizedContent, error) {
	if len(candidates) == 0 {
		return domain.PersonalizedContent{}, ErrNoRepositories
	}

	type scored struct {
		repo    domain.Repository
		score   float64
		reasons []string
	}
	ranked := make([]scored, len(candidates))
	for i, repo := range candidates {
		score, reasons := s.Score(repo, p)
		ranked[i] = scored{repo: repo, score: score, reasons: reasons}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > MaxRepositories {
		ranked = ranked[:MaxRepositories]
	}

	out := domain.PersonalizedContent{
		Repositories: make([]domain.Repository, len(ranked)),
		Scores:       make([]float64, len(ranked)),
		Reasons:      []string{},
	}
	var top float64
	for i, r := range ranked {
		out.Repositories[i] = r.repo
		out.Scores[i] = r.score
		if i < ReasonDepth {
			top += r.score
			out.Reasons = append(out.Reasons, r.reasons...)
		}
	}
	out.PersonalizationScore = top / ReasonDepth
	out.Level = LevelFor(out.PersonalizationScore)
	if s.segments != nil {
		out.Segment = s.segments.Determine(p)
	} else {
		out.Segment = domain.GeneralSegment(s.clock().UTC())
	}
	return out, nil
}

// LevelFor buckets an overall personalization score.
func LevelFor(score float64) domain.PersonalizationLevel {
	switch {
	case score >= 0.75:
		return domain.PersonalizationHigh
	case score >= 0.5:
		return domain.PersonalizationAdvanced
	case score >= 0.25:
		return domain.PersonalizationBasic
	default:
		return domain.PersonalizationNone
	}
}

// daysBetween counts calendar days (UTC) from t to now.
func daysBetween(t, now time.Time) int {
	from := t.UTC().Truncate(24 * time.Hour)
	to := now.UTC().Truncate(24 * time.Hour)
	return int(to.Sub(from).Hours() / 24)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
