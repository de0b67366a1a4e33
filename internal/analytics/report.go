package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
)

const topLinkLimit = 10

// Analytics builds the funnel report of one campaign.
func (s *Service) Analytics(campaignID string) (domain.CampaignAnalytics, error) {
	c, events, err := s.snapshot(campaignID)
	if err != nil {
		return domain.CampaignAnalytics{}, err
	}
	return compute(c, events), nil
}

// AllAnalytics reports on every campaign ordered by creation time.
func (s *Service) AllAnalytics() []domain.CampaignAnalytics {
	campaigns, events := s.snapshotAll()
	out := make([]domain.CampaignAnalytics, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, compute(c, events[c.ID]))
	}
	return out
}

func compute(c domain.Campaign, events []domain.Engagement) domain.CampaignAnalytics {
	counts := make(map[domain.EngagementKind]int, len(domain.EngagementKinds))
	for _, e := range events {
		counts[e.Kind]++
	}

	a := domain.CampaignAnalytics{
		CampaignID:        c.ID,
		CampaignName:      c.Name,
		SentAt:            c.SentAt,
		TotalRecipients:   c.TotalRecipients,
		DeliveredCount:    counts[domain.EngagementDelivered],
		OpenedCount:       counts[domain.EngagementOpened],
		ClickedCount:      counts[domain.EngagementClicked],
		BouncedCount:      counts[domain.EngagementBounced],
		ComplainedCount:   counts[domain.EngagementComplained],
		UnsubscribedCount: counts[domain.EngagementUnsubscribed],
		ConvertedCount:    counts[domain.EngagementConverted],
	}

	a.DeliveryRate = ratio(a.DeliveredCount, a.TotalRecipients)
	a.OpenRate = ratio(a.OpenedCount, a.DeliveredCount)
	a.ClickRate = ratio(a.ClickedCount, a.DeliveredCount)
	a.ClickToOpenRate = ratio(a.ClickedCount, a.OpenedCount)
	a.BounceRate = ratio(a.BouncedCount, a.TotalRecipients)
	a.ComplaintRate = ratio(a.ComplainedCount, a.DeliveredCount)
	a.UnsubscribeRate = ratio(a.UnsubscribedCount, a.DeliveredCount)
	a.ConversionRate = ratio(a.ConvertedCount, a.DeliveredCount)
	a.EngagementScore = engagementScore(a)
	a.TopClickedLinks = topLinks(events, a.DeliveredCount)
	a.Timeline = timeline(events)
	return a
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// engagementScore blends positive and negative rates and clamps to [0,1].
func engagementScore(a domain.CampaignAnalytics) float64 {
	positive := a.OpenRate*0.3 + a.ClickRate*0.4 + a.ConversionRate*0.3
	negative := a.BounceRate*0.4 + a.ComplaintRate*0.3 + a.UnsubscribeRate*0.3
	return math.Max(0, math.Min(1, positive-negative))
}

func topLinks(events []domain.Engagement, delivered int) []domain.LinkAnalytics {
	type tally struct {
		clicks     int
		recipients map[string]struct{}
	}
	byURL := make(map[string]*tally)
	for i := range events {
		if events[i].Kind != domain.EngagementClicked {
			continue
		}
		u, ok := events[i].URL()
		if !ok {
			continue
		}
		t, ok := byURL[u]
		if !ok {
			t = &tally{recipients: make(map[string]struct{})}
			byURL[u] = t
		}
		t.clicks++
		t.recipients[events[i].Recipient] = struct{}{}
	}

	links := make([]domain.LinkAnalytics, 0, len(byURL))
	for u, t := range byURL {
		links = append(links, domain.LinkAnalytics{
			URL:          u,
			ClickCount:   t.clicks,
			UniqueClicks: len(t.recipients),
			ClickRate:    ratio(t.clicks, delivered),
		})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].ClickCount != links[j].ClickCount {
			return links[i].ClickCount > links[j].ClickCount
		}
		return links[i].URL < links[j].URL
	})
	if len(links) > topLinkLimit {
		links = links[:topLinkLimit]
	}
	return links
}

func timeline(events []domain.Engagement) []domain.TimelinePoint {
	type bucket struct {
		hour time.Time
		kind domain.EngagementKind
	}
	counts := make(map[bucket]int)
	for _, e := range events {
		counts[bucket{hour: e.Timestamp.UTC().Truncate(time.Hour), kind: e.Kind}]++
	}

	points := make([]domain.TimelinePoint, 0, len(counts))
	for b, n := range counts {
		points = append(points, domain.TimelinePoint{Timestamp: b.hour, Kind: b.kind, Count: n})
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Timestamp.Equal(points[j].Timestamp) {
			return points[i].Timestamp.Before(points[j].Timestamp)
		}
		return kindOrder(points[i].Kind) < kindOrder(points[j].Kind)
	})
	return points
}

func kindOrder(k domain.EngagementKind) int {
	for i, known := range domain.EngagementKinds {
		if k == known {
			return i
		}
	}
	return len(domain.EngagementKinds)
}

// Compare ranks campaigns by engagement score. The significance figure is a
// coarse heuristic over the best and runner-up campaigns, not a formal test.
func (s *Service) Compare(ids []string) (domain.CampaignComparison, error) {
	cmp := domain.CampaignComparison{
		Campaigns:          make([]domain.CampaignAnalytics, 0, len(ids)),
		ImprovementMetrics: map[string]float64{},
	}
	for _, id := range ids {
		a, err := s.Analytics(id)
		if err != nil {
			return domain.CampaignComparison{}, err
		}
		cmp.Campaigns = append(cmp.Campaigns, a)
	}
	if len(cmp.Campaigns) == 0 {
		return cmp, nil
	}

	ranked := make([]domain.CampaignAnalytics, len(cmp.Campaigns))
	copy(ranked, cmp.Campaigns)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].EngagementScore > ranked[j].EngagementScore })

	best := ranked[0]
	winner := best.CampaignID
	cmp.Winner = &winner

	if len(ranked) < 2 {
		return cmp, nil
	}
	for _, other := range ranked[1:] {
		if other.CampaignID != best.CampaignID {
			cmp.StatisticalSignificance = heuristicSignificance(best, other)
			break
		}
	}

	n := float64(len(cmp.Campaigns))
	var open, click, conv float64
	for _, a := range cmp.Campaigns {
		open += a.OpenRate
		click += a.ClickRate
		conv += a.ConversionRate
	}
	lift := func(key string, value, mean float64) {
		if mean > 0 {
			cmp.ImprovementMetrics[key] = (value - mean) / mean
		}
	}
	lift("open_rate_improvement", best.OpenRate, open/n)
	lift("click_rate_improvement", best.ClickRate, click/n)
	lift("conversion_rate_improvement", best.ConversionRate, conv/n)
	return cmp, nil
}

func heuristicSignificance(best, runnerUp domain.CampaignAnalytics) float64 {
	sample := best.TotalRecipients
	if runnerUp.TotalRecipients < sample {
		sample = runnerUp.TotalRecipients
	}
	gap := best.EngagementScore - runnerUp.EngagementScore

	switch {
	case sample > 100 && gap > 0.05:
		return 0.95
	case sample > 50 && gap > 0.03:
		return 0.80
	default:
		return 0.60
	}
}

// SegmentPerformance averages results per targeted segment, ordered by
// segment id. Campaigns without a segment_id criterion are not grouped.
func (s *Service) SegmentPerformance() []domain.SegmentPerformance {
	campaigns, events := s.snapshotAll()
	groups := make(map[string][]domain.CampaignAnalytics)
	for _, c := range campaigns {
		if seg, ok := c.SegmentID(); ok {
			groups[seg] = append(groups[seg], compute(c, events[c.ID]))
		}
	}

	out := make([]domain.SegmentPerformance, 0, len(groups))
	for seg, list := range groups {
		out = append(out, summarize(seg, list))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out
}

func summarize(segmentID string, list []domain.CampaignAnalytics) domain.SegmentPerformance {
	p := domain.SegmentPerformance{
		SegmentID:      segmentID,
		SegmentName:    segmentID,
		TotalCampaigns: len(list),
	}

	bestScore, worstScore := 0.0, math.MaxFloat64
	for i := range list {
		a := &list[i]
		p.AvgOpenRate += a.OpenRate
		p.AvgClickRate += a.ClickRate
		p.AvgConversionRate += a.ConversionRate
		p.AvgEngagementScore += a.EngagementScore

		if a.EngagementScore > bestScore {
			bestScore = a.EngagementScore
			id := a.CampaignID
			p.BestPerformingCampaign = &id
		}
		if a.EngagementScore < worstScore {
			worstScore = a.EngagementScore
			id := a.CampaignID
			p.WorstPerformingCampaign = &id
		}
	}

	n := float64(len(list))
	p.AvgOpenRate /= n
	p.AvgClickRate /= n
	p.AvgConversionRate /= n
	p.AvgEngagementScore /= n
	return p
}

// Recommendation texts.
const (
	RecNoData          = "No historical data available for this segment"
	RecSubjectLines    = "Consider A/B testing different subject lines to improve open rates"
	RecSendTimes       = "Optimize send times based on audience timezone and behavior"
	RecContent         = "Improve email content relevance and call-to-action placement"
	RecLayouts         = "Test different email layouts and button designs"
	RecLandingPage     = "Review landing page experience and conversion funnel"
	RecMessaging       = "Ensure email content aligns with landing page messaging"
	RecSegmentFurther  = "Consider segmenting this audience further for better personalization"
	RecFrequency       = "Review email frequency to avoid subscriber fatigue"
	RecPerformanceGood = "Performance looks good! Consider testing advanced personalization features"
)

// Recommendations applies the threshold rules to a segment's averages.
func (s *Service) Recommendations(segmentID string) []string {
	var perf *domain.SegmentPerformance
	all := s.SegmentPerformance()
	for i := range all {
		if all[i].SegmentID == segmentID {
			perf = &all[i]
			break
		}
	}
	if perf == nil {
		return []string{RecNoData}
	}

	var recs []string
	if perf.AvgOpenRate < 0.20 {
		recs = append(recs, RecSubjectLines, RecSendTimes)
	}
	if perf.AvgClickRate < 0.05 {
		recs = append(recs, RecContent, RecLayouts)
	}
	if perf.AvgConversionRate < 0.02 {
		recs = append(recs, RecLandingPage, RecMessaging)
	}
	if perf.AvgEngagementScore < 0.5 {
		recs = append(recs, RecSegmentFurther, RecFrequency)
	}
	if len(recs) == 0 {
		recs = append(recs, RecPerformanceGood)
	}
	return recs
}
