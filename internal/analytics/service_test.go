package analytics_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ignite/newsletter-engine/internal/analytics"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

// newService returns a service whose clock advances one minute per reading.
func newService() *analytics.Service {
	s := analytics.NewService()
	tick := start
	s.SetClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	})
	return s
}

func seed(t *testing.T, s *analytics.Service, campaignID string, kind domain.EngagementKind, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.TrackEngagement(domain.Engagement{
			CampaignID: campaignID,
			Recipient:  fmt.Sprintf("user%d@example.com", i),
			Kind:       kind,
		})
		require.NoError(t, err)
	}
}

type funnel struct {
	total, delivered, opened, clicked, converted int
}

func sentCampaign(t *testing.T, s *analytics.Service, name string, criteria map[string]any, f funnel) string {
	t.Helper()
	id := s.CreateCampaign(name, "Subject", "v1", criteria)
	require.NoError(t, s.MarkSent(id, f.total))
	seed(t, s, id, domain.EngagementDelivered, f.delivered)
	seed(t, s, id, domain.EngagementOpened, f.opened)
	seed(t, s, id, domain.EngagementClicked, f.clicked)
	seed(t, s, id, domain.EngagementConverted, f.converted)
	return id
}

func TestMarkSent(t *testing.T) {
	s := newService()

	err := s.MarkSent("missing", 10)
	assert.ErrorIs(t, err, analytics.ErrCampaignNotFound)

	id := s.CreateCampaign("Weekly", "Hello", "v1", nil)
	c, err := s.Campaign(id)
	require.NoError(t, err)
	assert.False(t, c.IsSent())

	require.NoError(t, s.MarkSent(id, 42))
	c, err = s.Campaign(id)
	require.NoError(t, err)
	require.True(t, c.IsSent())
	assert.Equal(t, 42, c.TotalRecipients)

	err = s.MarkSent(id, 50)
	assert.ErrorIs(t, err, analytics.ErrAlreadySent)
	c, _ = s.Campaign(id)
	assert.Equal(t, 42, c.TotalRecipients)
}

func TestTrackEngagement(t *testing.T) {
	s := newService()

	_, err := s.TrackEngagement(domain.Engagement{CampaignID: "missing", Kind: domain.EngagementOpened})
	assert.ErrorIs(t, err, analytics.ErrCampaignNotFound)

	id := s.CreateCampaign("Weekly", "Hello", "v1", nil)
	_, err = s.TrackEngagement(domain.Engagement{CampaignID: id, Kind: "teleported"})
	assert.ErrorIs(t, err, analytics.ErrInvalidEngagement)

	eid, err := s.TrackEngagement(domain.Engagement{CampaignID: id, Recipient: "a@example.com", Kind: domain.EngagementOpened})
	require.NoError(t, err)
	assert.NotEmpty(t, eid)
	assert.Equal(t, 1, s.EngagementCount())

	st := s.Export()
	require.Len(t, st.Engagements, 1)
	assert.False(t, st.Engagements[0].Timestamp.IsZero())
}

func TestAnalytics_RateMath(t *testing.T) {
	s := newService()
	id := sentCampaign(t, s, "Weekly", nil, funnel{total: 100, delivered: 80, opened: 40, clicked: 10, converted: 5})

	a, err := s.Analytics(id)
	require.NoError(t, err)
	assert.Equal(t, 80, a.DeliveredCount)
	assert.InDelta(t, 0.8, a.DeliveryRate, 1e-9)
	assert.InDelta(t, 0.5, a.OpenRate, 1e-9)
	assert.InDelta(t, 0.125, a.ClickRate, 1e-9)
	assert.InDelta(t, 0.25, a.ClickToOpenRate, 1e-9)
	assert.InDelta(t, 0.0625, a.ConversionRate, 1e-9)
	assert.InDelta(t, 0.21875, a.EngagementScore, 1e-9)
}

func TestAnalytics_ZeroDenominators(t *testing.T) {
	s := newService()
	id := s.CreateCampaign("Empty", "Hello", "v1", nil)
	require.NoError(t, s.MarkSent(id, 0))

	a, err := s.Analytics(id)
	require.NoError(t, err)
	for name, rate := range map[string]float64{
		"delivery":    a.DeliveryRate,
		"open":        a.OpenRate,
		"click":       a.ClickRate,
		"click_open":  a.ClickToOpenRate,
		"bounce":      a.BounceRate,
		"complaint":   a.ComplaintRate,
		"unsubscribe": a.UnsubscribeRate,
		"conversion":  a.ConversionRate,
		"engagement":  a.EngagementScore,
	} {
		assert.Zero(t, rate, name)
	}
	assert.Empty(t, a.TopClickedLinks)
	assert.Empty(t, a.Timeline)
}

func TestAnalytics_UnknownCampaign(t *testing.T) {
	_, err := newService().Analytics("missing")
	assert.ErrorIs(t, err, analytics.ErrCampaignNotFound)
}

func TestAnalytics_EngagementScoreClamped(t *testing.T) {
	s := newService()
	id := s.CreateCampaign("Bouncy", "Hello", "v1", nil)
	require.NoError(t, s.MarkSent(id, 10))
	seed(t, s, id, domain.EngagementBounced, 10)

	a, err := s.Analytics(id)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, a.BounceRate, 1e-9)
	assert.Zero(t, a.EngagementScore)
}

func TestAnalytics_TopLinks(t *testing.T) {
	s := newService()
	id := s.CreateCampaign("Links", "Hello", "v1", nil)
	require.NoError(t, s.MarkSent(id, 4))
	seed(t, s, id, domain.EngagementDelivered, 4)

	click := func(recipient, url string) {
		e := domain.Engagement{CampaignID: id, Recipient: recipient, Kind: domain.EngagementClicked}
		if url != "" {
			e.Payload = map[string]any{"url": url}
		}
		_, err := s.TrackEngagement(e)
		require.NoError(t, err)
	}
	click("a@example.com", "https://example.com/a")
	click("a@example.com", "https://example.com/a")
	click("b@example.com", "https://example.com/a")
	click("c@example.com", "https://example.com/b")
	click("d@example.com", "")

	a, err := s.Analytics(id)
	require.NoError(t, err)
	require.Len(t, a.TopClickedLinks, 2)
	assert.Equal(t, domain.LinkAnalytics{
		URL:          "https://example.com/a",
		ClickCount:   3,
		UniqueClicks: 2,
		ClickRate:    0.75,
	}, a.TopClickedLinks[0])
	assert.Equal(t, "https://example.com/b", a.TopClickedLinks[1].URL)
	assert.Equal(t, 5, a.ClickedCount)
}

func TestAnalytics_TopLinksLimited(t *testing.T) {
	s := newService()
	id := s.CreateCampaign("Links", "Hello", "v1", nil)
	for i := 0; i < 12; i++ {
		for j := 0; j <= i; j++ {
			_, err := s.TrackEngagement(domain.Engagement{
				CampaignID: id,
				Recipient:  "r@example.com",
				Kind:       domain.EngagementClicked,
				Payload:    map[string]any{"url": fmt.Sprintf("https://example.com/%02d", i)},
			})
			require.NoError(t, err)
		}
	}

	a, err := s.Analytics(id)
	require.NoError(t, err)
	require.Len(t, a.TopClickedLinks, 10)
	assert.Equal(t, "https://example.com/11", a.TopClickedLinks[0].URL)
	assert.Equal(t, 12, a.TopClickedLinks[0].ClickCount)
	assert.Equal(t, "https://example.com/02", a.TopClickedLinks[9].URL)
}

func TestAnalytics_Timeline(t *testing.T) {
	s := newService()
	id := s.CreateCampaign("Timeline", "Hello", "v1", nil)

	at := func(kind domain.EngagementKind, hh, mm int) {
		_, err := s.TrackEngagement(domain.Engagement{
			CampaignID: id,
			Recipient:  "r@example.com",
			Kind:       kind,
			Timestamp:  time.Date(2026, 5, 10, hh, mm, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	at(domain.EngagementClicked, 11, 10)
	at(domain.EngagementOpened, 10, 40)
	at(domain.EngagementOpened, 10, 5)
	at(domain.EngagementSent, 10, 1)

	a, err := s.Analytics(id)
	require.NoError(t, err)
	ten := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, []domain.TimelinePoint{
		{Timestamp: ten, Kind: domain.EngagementSent, Count: 1},
		{Timestamp: ten, Kind: domain.EngagementOpened, Count: 2},
		{Timestamp: ten.Add(time.Hour), Kind: domain.EngagementClicked, Count: 1},
	}, a.Timeline)
}

func TestAllAnalytics_OrderedByCreation(t *testing.T) {
	s := newService()
	first := s.CreateCampaign("First", "Hello", "v1", nil)
	second := s.CreateCampaign("Second", "Hello", "v1", nil)

	all := s.AllAnalytics()
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].CampaignID)
	assert.Equal(t, second, all[1].CampaignID)
}

func TestExportImport(t *testing.T) {
	s := newService()
	id := sentCampaign(t, s, "Weekly", map[string]any{domain.SegmentIDKey: "rust_developers"},
		funnel{total: 100, delivered: 80, opened: 40, clicked: 10, converted: 5})
	want, err := s.Analytics(id)
	require.NoError(t, err)

	st := s.Export()
	st.Engagements = append(st.Engagements, domain.Engagement{CampaignID: "orphan", Kind: domain.EngagementOpened})

	restored := analytics.NewService()
	restored.Import(st)
	got, err := restored.Analytics(id)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 135, restored.EngagementCount())
}

func TestTrackEngagement_NormalizesKind(t *testing.T) {
	s := newService()
	id := s.CreateCampaign("weekly", "Subject", "v1", nil)
	require.NoError(t, s.MarkSent(id, 10))

	for i := 0; i < 4; i++ {
		_, err := s.TrackEngagement(domain.Engagement{
			CampaignID: id,
			Recipient:  fmt.Sprintf("user%d@example.com", i),
			Kind:       "Delivered",
		})
		require.NoError(t, err)
	}
	_, err := s.TrackEngagement(domain.Engagement{CampaignID: id, Recipient: "user0@example.com", Kind: " OPENED "})
	require.NoError(t, err)

	a, err := s.Analytics(id)
	require.NoError(t, err)
	assert.Equal(t, 4, a.DeliveredCount)
	assert.Equal(t, 1, a.OpenedCount)
	assert.InDelta(t, 0.4, a.DeliveryRate, 1e-9)
	assert.InDelta(t, 0.25, a.OpenRate, 1e-9)
}

func TestMarkSent_ConcurrentCallsSucceedOnce(t *testing.T) {
	s := analytics.NewService()
	s.SetClock(func() time.Time { return start })
	id := s.CreateCampaign("weekly", "Subject", "v1", nil)

	const workers = 32
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.MarkSent(id, 100+i)
		}(i)
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, analytics.ErrAlreadySent):
			already++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, already)
}

func TestTrackEngagement_ConcurrentAppends(t *testing.T) {
	s := analytics.NewService()
	s.SetClock(func() time.Time { return start })
	id := s.CreateCampaign("weekly", "Subject", "v1", nil)
	require.NoError(t, s.MarkSent(id, 1000))

	const workers, perWorker = 16, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := s.TrackEngagement(domain.Engagement{
					CampaignID: id,
					Recipient:  fmt.Sprintf("user%d-%d@example.com", w, i),
					Kind:       domain.EngagementDelivered,
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, s.EngagementCount())
	a, err := s.Analytics(id)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, a.DeliveredCount)
}
