// Package analytics owns newsletter campaigns and their engagement log and
// turns them into funnel reports, comparisons and segment summaries.
package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/metrics"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

// Service stores campaigns and engagements in memory. Mutations are
// serialized; reports copy what they need and compute without the lock.
type Service struct {
	mu          sync.RWMutex
	campaigns   map[string]*domain.Campaign
	engagements map[string][]domain.Engagement

	now func() time.Time
	log *logger.Logger
}

// NewService creates an empty analytics service.
func NewService() *Service {
	return &Service{
		campaigns:   make(map[string]*domain.Campaign),
		engagements: make(map[string][]domain.Engagement),
		now:         time.Now,
		log:         logger.With("component", "analytics"),
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// CreateCampaign registers a campaign in the not-sent state and returns its id.
func (s *Service) CreateCampaign(name, subject, templateVersion string, segmentCriteria map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &domain.Campaign{
		ID:              uuid.New().String(),
		Name:            name,
		SubjectLine:     subject,
		TemplateVersion: templateVersion,
		SegmentCriteria: copyMap(segmentCriteria),
		CreatedAt:       s.now().UTC(),
	}
	s.campaigns[c.ID] = c
	s.log.Info("campaign created", "campaign_id", c.ID, "name", name)
	return c.ID
}

// MarkSent stamps sent_at and freezes the recipient count. It can happen once.
func (s *Service) MarkSent(campaignID string, totalRecipients int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCampaignNotFound, campaignID)
	}
	if c.IsSent() {
		return fmt.Errorf("%w: %s", ErrAlreadySent, campaignID)
	}
	if totalRecipients < 0 {
		totalRecipients = 0
	}
	sentAt := s.now().UTC()
	c.SentAt = &sentAt
	c.TotalRecipients = totalRecipients

	s.log.Info("campaign sent", "campaign_id", campaignID, "total_recipients", totalRecipients)
	return nil
}

// TrackEngagement appends e to its campaign's log. A missing id or timestamp
// is filled in; the stored id is returned.
func (s *Service) TrackEngagement(e domain.Engagement) (string, error) {
	kind, err := domain.ParseEngagementKind(string(e.Kind))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEngagement, err)
	}
	e.Kind = kind
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.Payload = copyMap(e.Payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[e.CampaignID]; !ok {
		return "", fmt.Errorf("%w: %s", ErrCampaignNotFound, e.CampaignID)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	s.engagements[e.CampaignID] = append(s.engagements[e.CampaignID], e)
	metrics.IncEngagement(string(e.Kind))

	s.log.Debug("engagement tracked", "campaign_id", e.CampaignID, "kind", string(e.Kind), "recipient", e.Recipient)
	return e.ID, nil
}

// Campaign returns a copy of the campaign with the given id.
func (s *Service) Campaign(id string) (domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return domain.Campaign{}, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	return cloneCampaign(c), nil
}

// Campaigns returns every campaign ordered by creation time.
func (s *Service) Campaigns() []domain.Campaign {
	s.mu.RLock()
	out := make([]domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, cloneCampaign(c))
	}
	s.mu.RUnlock()

	sortCampaigns(out)
	return out
}

// EngagementCount returns the total number of tracked engagements.
func (s *Service) EngagementCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, list := range s.engagements {
		n += len(list)
	}
	return n
}

// snapshot copies one campaign and its engagements.
func (s *Service) snapshot(id string) (domain.Campaign, []domain.Engagement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return domain.Campaign{}, nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	events := make([]domain.Engagement, len(s.engagements[id]))
	copy(events, s.engagements[id])
	return cloneCampaign(c), events, nil
}

// snapshotAll copies every campaign, ordered by creation time, together with
// its engagements.
func (s *Service) snapshotAll() ([]domain.Campaign, map[string][]domain.Engagement) {
	s.mu.RLock()
	campaigns := make([]domain.Campaign, 0, len(s.campaigns))
	events := make(map[string][]domain.Engagement, len(s.campaigns))
	for id, c := range s.campaigns {
		campaigns = append(campaigns, cloneCampaign(c))
		list := make([]domain.Engagement, len(s.engagements[id]))
		copy(list, s.engagements[id])
		events[id] = list
	}
	s.mu.RUnlock()

	sortCampaigns(campaigns)
	return campaigns, events
}

func sortCampaigns(list []domain.Campaign) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func cloneCampaign(c *domain.Campaign) domain.Campaign {
	out := *c
	out.SegmentCriteria = copyMap(c.SegmentCriteria)
	if c.SentAt != nil {
		t := *c.SentAt
		out.SentAt = &t
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
