package analytics_test

import (
	"testing"

	"github.com/ignite/newsletter-engine/internal/analytics"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Empty(t *testing.T) {
	cmp, err := newService().Compare(nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Campaigns)
	assert.Nil(t, cmp.Winner)
	assert.Zero(t, cmp.StatisticalSignificance)
	assert.Empty(t, cmp.ImprovementMetrics)
}

func TestCompare_UnknownCampaign(t *testing.T) {
	s := newService()
	id := s.CreateCampaign("Weekly", "Hello", "v1", nil)
	_, err := s.Compare([]string{id, "missing"})
	assert.ErrorIs(t, err, analytics.ErrCampaignNotFound)
}

func TestCompare_SingleCampaign(t *testing.T) {
	s := newService()
	id := sentCampaign(t, s, "Solo", nil, funnel{total: 10, delivered: 10, opened: 5})

	cmp, err := s.Compare([]string{id})
	require.NoError(t, err)
	require.NotNil(t, cmp.Winner)
	assert.Equal(t, id, *cmp.Winner)
	assert.Zero(t, cmp.StatisticalSignificance)
	assert.Empty(t, cmp.ImprovementMetrics)
}

func TestCompare_DuplicateIDsAreNotTheirOwnRunnerUp(t *testing.T) {
	s := newService()
	a := sentCampaign(t, s, "better", nil, funnel{total: 60, delivered: 60, opened: 30})

	cmp, err := s.Compare([]string{a, a})
	require.NoError(t, err)
	require.NotNil(t, cmp.Winner)
	assert.Equal(t, a, *cmp.Winner)
	assert.Zero(t, cmp.StatisticalSignificance)

	b := sentCampaign(t, s, "worse", nil, funnel{total: 60, delivered: 60, opened: 20})
	cmp, err = s.Compare([]string{a, a, b})
	require.NoError(t, err)
	assert.Equal(t, 0.80, cmp.StatisticalSignificance)
}

func TestCompare_WinnerAndLift(t *testing.T) {
	s := newService()
	weak := sentCampaign(t, s, "B", nil, funnel{total: 150, delivered: 150, opened: 30, clicked: 3})
	strong := sentCampaign(t, s, "A", nil, funnel{total: 200, delivered: 200, opened: 100, clicked: 40, converted: 10})

	cmp, err := s.Compare([]string{weak, strong})
	require.NoError(t, err)
	require.Len(t, cmp.Campaigns, 2)
	assert.Equal(t, weak, cmp.Campaigns[0].CampaignID)
	require.NotNil(t, cmp.Winner)
	assert.Equal(t, strong, *cmp.Winner)
	assert.Equal(t, 0.95, cmp.StatisticalSignificance)

	assert.InDelta(t, (0.5-0.35)/0.35, cmp.ImprovementMetrics["open_rate_improvement"], 1e-9)
	assert.InDelta(t, (0.2-0.11)/0.11, cmp.ImprovementMetrics["click_rate_improvement"], 1e-9)
	assert.InDelta(t, 1.0, cmp.ImprovementMetrics["conversion_rate_improvement"], 1e-9)
}

func TestCompare_SignificanceTiers(t *testing.T) {
	tests := []struct {
		name          string
		better, worse funnel
		want          float64
	}{
		{
			name:   "medium sample, moderate gap",
			better: funnel{total: 60, delivered: 60, opened: 30},
			worse:  funnel{total: 60, delivered: 60, opened: 20},
			want:   0.80,
		},
		{
			name:   "small sample",
			better: funnel{total: 10, delivered: 10, opened: 9},
			worse:  funnel{total: 10, delivered: 10, opened: 1},
			want:   0.60,
		},
		{
			name:   "large sample, small gap",
			better: funnel{total: 500, delivered: 500, opened: 250},
			worse:  funnel{total: 500, delivered: 500, opened: 240},
			want:   0.60,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService()
			a := sentCampaign(t, s, "better", nil, tt.better)
			b := sentCampaign(t, s, "worse", nil, tt.worse)

			cmp, err := s.Compare([]string{a, b})
			require.NoError(t, err)
			assert.Equal(t, a, *cmp.Winner)
			assert.Equal(t, tt.want, cmp.StatisticalSignificance)
		})
	}
}

func TestCompare_ZeroMeansAreSkipped(t *testing.T) {
	s := newService()
	a := sentCampaign(t, s, "A", nil, funnel{total: 10, delivered: 10, opened: 5})
	b := sentCampaign(t, s, "B", nil, funnel{total: 10, delivered: 10, opened: 3})

	cmp, err := s.Compare([]string{a, b})
	require.NoError(t, err)
	assert.Contains(t, cmp.ImprovementMetrics, "open_rate_improvement")
	assert.NotContains(t, cmp.ImprovementMetrics, "click_rate_improvement")
	assert.NotContains(t, cmp.ImprovementMetrics, "conversion_rate_improvement")
}

func segment(id string) map[string]any {
	return map[string]any{domain.SegmentIDKey: id}
}

func TestSegmentPerformance(t *testing.T) {
	s := newService()
	good := sentCampaign(t, s, "rust-1", segment("rust_developers"), funnel{total: 10, delivered: 10, opened: 5})
	poor := sentCampaign(t, s, "rust-2", segment("rust_developers"), funnel{total: 10, delivered: 10, opened: 2})
	idle := sentCampaign(t, s, "py-1", segment("python_developers"), funnel{})
	sentCampaign(t, s, "untargeted", nil, funnel{total: 10, delivered: 10})

	perf := s.SegmentPerformance()
	require.Len(t, perf, 2)

	py := perf[0]
	assert.Equal(t, "python_developers", py.SegmentID)
	assert.Equal(t, "python_developers", py.SegmentName)
	assert.Equal(t, 1, py.TotalCampaigns)
	assert.Nil(t, py.BestPerformingCampaign)
	require.NotNil(t, py.WorstPerformingCampaign)
	assert.Equal(t, idle, *py.WorstPerformingCampaign)

	rust := perf[1]
	assert.Equal(t, "rust_developers", rust.SegmentID)
	assert.Equal(t, 2, rust.TotalCampaigns)
	assert.InDelta(t, 0.35, rust.AvgOpenRate, 1e-9)
	assert.InDelta(t, 0.105, rust.AvgEngagementScore, 1e-9)
	require.NotNil(t, rust.BestPerformingCampaign)
	require.NotNil(t, rust.WorstPerformingCampaign)
	assert.Equal(t, good, *rust.BestPerformingCampaign)
	assert.Equal(t, poor, *rust.WorstPerformingCampaign)
}

func TestRecommendations(t *testing.T) {
	s := newService()
	sentCampaign(t, s, "rust-1", segment("rust_developers"), funnel{total: 10, delivered: 10, opened: 5})
	sentCampaign(t, s, "star", segment("highly_engaged"), funnel{total: 10, delivered: 10, opened: 10, clicked: 10, converted: 10})
	sentCampaign(t, s, "quiet", segment("low_engagement"), funnel{total: 10, delivered: 10})

	assert.Equal(t, []string{analytics.RecNoData}, s.Recommendations("unknown"))
	assert.Equal(t, []string{analytics.RecPerformanceGood}, s.Recommendations("highly_engaged"))
	assert.Equal(t, []string{
		analytics.RecContent, analytics.RecLayouts,
		analytics.RecLandingPage, analytics.RecMessaging,
		analytics.RecSegmentFurther, analytics.RecFrequency,
	}, s.Recommendations("rust_developers"))
	assert.Equal(t, []string{
		analytics.RecSubjectLines, analytics.RecSendTimes,
		analytics.RecContent, analytics.RecLayouts,
		analytics.RecLandingPage, analytics.RecMessaging,
		analytics.RecSegmentFurther, analytics.RecFrequency,
	}, s.Recommendations("low_engagement"))
}
