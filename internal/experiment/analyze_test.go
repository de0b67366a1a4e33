package experiment_test

import (
	"fmt"
	"testing"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/experiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedVariant records a send for each of n recipients and a conversion for
// the first conversions of them.
func seedVariant(t *testing.T, r *experiment.Registry, expID, variantID string, n, conversions int) {
	t.Helper()
	for i := 0; i < n; i++ {
		recipient := fmt.Sprintf("%s-%d@example.com", variantID, i)
		_, err := r.RecordEvent(expID, variantID, recipient, nil, domain.EventEmailSent, nil)
		require.NoError(t, err)
		if i < conversions {
			_, err = r.RecordEvent(expID, variantID, recipient, nil, domain.EventConversion, nil)
			require.NoError(t, err)
		}
	}
}

func TestAnalyze_DeclaresSignificantWinner(t *testing.T) {
	r := newRegistry()
	id := startedExperiment(t, r, subjectTest(0.5, 0.5))
	seedVariant(t, r, id, "v0", 1000, 100)
	seedVariant(t, r, id, "v1", 1000, 200)

	res, err := r.Analyze(id)
	require.NoError(t, err)
	require.Len(t, res.Variants, 2)

	require.NotNil(t, res.Winner)
	assert.Equal(t, "v1", *res.Winner)
	assert.Equal(t, 0.99, res.Confidence)
	assert.True(t, res.StatisticallySignificant)

	v1 := res.Variants[1]
	assert.Equal(t, 1000, v1.SampleSize)
	assert.InDelta(t, 0.2, v1.ConversionRate, 1e-9)
	assert.Less(t, v1.ConfidenceInterval.Lower, 0.2)
	assert.Greater(t, v1.ConfidenceInterval.Upper, 0.2)
}

func TestAnalyze_NoWinnerWhenDifferenceIsSmall(t *testing.T) {
	r := newRegistry()
	id := startedExperiment(t, r, subjectTest(0.5, 0.5))
	seedVariant(t, r, id, "v0", 150, 15)
	seedVariant(t, r, id, "v1", 150, 18)

	res, err := r.Analyze(id)
	require.NoError(t, err)
	assert.Nil(t, res.Winner)
	assert.Equal(t, 0.0, res.Confidence)
	assert.False(t, res.StatisticallySignificant)
}

func TestAnalyze_WeakestComparisonDecides(t *testing.T) {
	r := newRegistry()
	id := startedExperiment(t, r, subjectTest(0.4, 0.3, 0.3))
	seedVariant(t, r, id, "v0", 1000, 200)
	seedVariant(t, r, id, "v1", 1000, 100)
	seedVariant(t, r, id, "v2", 1000, 190)

	res, err := r.Analyze(id)
	require.NoError(t, err)
	assert.Nil(t, res.Winner, "v0 beats v1 clearly but not v2")
	assert.Equal(t, 0.0, res.Confidence)
}

func TestAnalyze_SkipsVariantsBelowSampleSize(t *testing.T) {
	r := newRegistry()
	id := startedExperiment(t, r, subjectTest(0.5, 0.5))
	seedVariant(t, r, id, "v0", 120, 30)
	seedVariant(t, r, id, "v1", 40, 1)

	res, err := r.Analyze(id)
	require.NoError(t, err)
	require.Len(t, res.Variants, 1)
	assert.Equal(t, "v0", res.Variants[0].VariantID)
	assert.Nil(t, res.Winner)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	r := newRegistry()
	id := startedExperiment(t, r, subjectTest(0.5, 0.5))

	_, err := r.Analyze(id)
	assert.ErrorIs(t, err, experiment.ErrInsufficientData, "no events")

	seedVariant(t, r, id, "v0", 10, 1)
	_, err = r.Analyze(id)
	assert.ErrorIs(t, err, experiment.ErrInsufficientData, "below sample size")

	_, err = r.Analyze("missing")
	assert.ErrorIs(t, err, experiment.ErrNotFound)
}

func TestAnalyze_FunnelMetrics(t *testing.T) {
	r := newRegistry()
	def := subjectTest(0.5, 0.5)
	def.MinimumSampleSize = 1
	id := startedExperiment(t, r, def)

	for i := 0; i < 4; i++ {
		rcpt := fmt.Sprintf("m%d@example.com", i)
		_, err := r.RecordEvent(id, "v0", rcpt, nil, domain.EventEmailSent, nil)
		require.NoError(t, err)
	}
	_, _ = r.RecordEvent(id, "v0", "m0@example.com", nil, domain.EventEmailOpened, nil)
	_, _ = r.RecordEvent(id, "v0", "m1@example.com", nil, domain.EventEmailOpened, nil)
	_, _ = r.RecordEvent(id, "v0", "m0@example.com", nil, domain.EventLinkClicked, nil)
	_, _ = r.RecordEvent(id, "v0", "m1@example.com", nil, domain.EventEmailClicked, nil)
	_, _ = r.RecordEvent(id, "v0", "m3@example.com", nil, domain.EventUnsubscribe, nil)
	_, _ = r.RecordEvent(id, "v0", "m2@example.com", nil, domain.CustomEvent("shared"), nil)

	res, err := r.Analyze(id)
	require.NoError(t, err)
	require.Len(t, res.Variants, 1)
	m := res.Variants[0].Metrics
	assert.InDelta(t, 0.5, m[experiment.MetricOpenRate], 1e-9)
	assert.InDelta(t, 0.5, m[experiment.MetricClickRate], 1e-9)
	assert.InDelta(t, 0.25, m[experiment.MetricUnsubscribeRate], 1e-9)
	assert.Equal(t, 4, res.Variants[0].SampleSize)
	assert.Equal(t, 0.0, res.Variants[0].ConversionRate)
}
