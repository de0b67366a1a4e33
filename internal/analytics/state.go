package analytics

import "github.com/ignite/newsletter-engine/internal/domain"

// State is the plain-record form of the service used by snapshot stores.
type State struct {
	Campaigns   []domain.Campaign   `json:"campaigns"`
	Engagements []domain.Engagement `json:"engagements"`
}

// Export copies every campaign and engagement. Engagements are grouped by
// campaign in campaign order and keep their append order within a campaign.
func (s *Service) Export() State {
	campaigns, events := s.snapshotAll()
	st := State{Campaigns: campaigns, Engagements: []domain.Engagement{}}
	for _, c := range campaigns {
		st.Engagements = append(st.Engagements, events[c.ID]...)
	}
	return st
}

// Import replaces the service contents with st. Engagements referencing an
// unknown campaign are dropped.
func (s *Service) Import(st State) {
	campaigns := make(map[string]*domain.Campaign, len(st.Campaigns))
	for i := range st.Campaigns {
		c := cloneCampaign(&st.Campaigns[i])
		campaigns[c.ID] = &c
	}
	engagements := make(map[string][]domain.Engagement, len(campaigns))
	dropped := 0
	for _, e := range st.Engagements {
		if _, ok := campaigns[e.CampaignID]; !ok {
			dropped++
			continue
		}
		e.Payload = copyMap(e.Payload)
		engagements[e.CampaignID] = append(engagements[e.CampaignID], e)
	}

	s.mu.Lock()
	s.campaigns = campaigns
	s.engagements = engagements
	s.mu.Unlock()

	if dropped > 0 {
		s.log.Warn("dropped orphan engagements on restore", "count", dropped)
	}
	s.log.Info("analytics restored", "campaigns", len(campaigns), "engagements", len(st.Engagements)-dropped)
}
