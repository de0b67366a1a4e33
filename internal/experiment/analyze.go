package experiment

import (
	"fmt"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/stats"
)

// Metric names reported per variant alongside the conversion rate.
const (
	MetricOpenRate        = "open_rate"
	MetricClickRate       = "click_rate"
	MetricUnsubscribeRate = "unsubscribe_rate"
)

// Analyze computes per-variant results and decides whether a winner can be
// declared at the experiment's confidence target.
//
// Variants below the minimum sample size are left out. The candidate winner
// is the qualifying variant with the highest conversion rate; it is only
// confirmed when even its weakest pairwise comparison reaches the target.
func (r *Registry) Analyze(experimentID string) (domain.ExperimentResults, error) {
	r.mu.RLock()
	exp, ok := r.experiments[experimentID]
	if !ok {
		r.mu.RUnlock()
		return domain.ExperimentResults{}, fmt.Errorf("%w: %s", ErrNotFound, experimentID)
	}
	snapshot := cloneExperiment(exp)
	byVariant := make(map[string][]domain.ExperimentEvent)
	total := 0
	for _, evt := range r.events {
		if evt.ExperimentID == experimentID {
			byVariant[evt.VariantID] = append(byVariant[evt.VariantID], evt)
			total++
		}
	}
	analyzedAt := r.now().UTC()
	r.mu.RUnlock()

	if total == 0 {
		return domain.ExperimentResults{}, fmt.Errorf("%w: experiment %s has no events", ErrInsufficientData, experimentID)
	}

	results := make([]domain.VariantResult, 0, len(snapshot.Variants))
	for _, v := range snapshot.Variants {
		events := byVariant[v.ID]
		sampleSize := uniqueRecipients(events)
		if sampleSize == 0 || sampleSize < snapshot.MinimumSampleSize {
			continue
		}
		rate := conversionRate(events, sampleSize)
		interval, err := stats.ConfidenceInterval(rate, sampleSize, snapshot.ConfidenceLevel)
		if err != nil {
			return domain.ExperimentResults{}, err
		}
		results = append(results, domain.VariantResult{
			VariantID:          v.ID,
			VariantName:        v.Name,
			SampleSize:         sampleSize,
			ConversionRate:     rate,
			ConfidenceInterval: domain.ConfidenceInterval{Lower: interval.Lower, Upper: interval.Upper},
			Metrics:            funnelMetrics(events),
		})
	}
	if len(results) == 0 {
		return domain.ExperimentResults{}, fmt.Errorf("%w: no variant of %s reached %d recipients",
			ErrInsufficientData, experimentID, snapshot.MinimumSampleSize)
	}

	winner, confidence, err := determineWinner(results, snapshot.ConfidenceLevel)
	if err != nil {
		return domain.ExperimentResults{}, err
	}
	return domain.ExperimentResults{
		ExperimentID:             experimentID,
		Variants:                 results,
		Winner:                   winner,
		Confidence:               confidence,
		StatisticallySignificant: winner != nil,
		AnalyzedAt:               analyzedAt,
	}, nil
}

// determineWinner returns the confirmed winner (or nil) and the confidence of
// the candidate against its closest competitor.
func determineWinner(results []domain.VariantResult, target float64) (*string, float64, error) {
	if len(results) < 2 {
		return nil, 0, nil
	}
	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].ConversionRate > results[best].ConversionRate {
			best = i
		}
	}

	weakest := 1.0
	for i, other := range results {
		if i == best {
			continue
		}
		c, err := stats.TwoProportionConfidence(
			results[best].ConversionRate, results[best].SampleSize,
			other.ConversionRate, other.SampleSize,
		)
		if err != nil {
			return nil, 0, err
		}
		if c < weakest {
			weakest = c
		}
	}

	if weakest >= target {
		id := results[best].VariantID
		return &id, weakest, nil
	}
	return nil, weakest, nil
}

func uniqueRecipients(events []domain.ExperimentEvent) int {
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		seen[e.Recipient] = struct{}{}
	}
	return len(seen)
}

func conversionRate(events []domain.ExperimentEvent, recipients int) float64 {
	if recipients == 0 {
		return 0
	}
	return float64(countKinds(events, domain.EventConversion)) / float64(recipients)
}

// funnelMetrics reports open, click and unsubscribe rates relative to sends.
func funnelMetrics(events []domain.ExperimentEvent) map[string]float64 {
	metrics := map[string]float64{
		MetricOpenRate:        0,
		MetricClickRate:       0,
		MetricUnsubscribeRate: 0,
	}
	sent := countKinds(events, domain.EventEmailSent)
	if sent == 0 {
		return metrics
	}
	s := float64(sent)
	metrics[MetricOpenRate] = float64(countKinds(events, domain.EventEmailOpened)) / s
	metrics[MetricClickRate] = float64(countKinds(events, domain.EventEmailClicked, domain.EventLinkClicked)) / s
	metrics[MetricUnsubscribeRate] = float64(countKinds(events, domain.EventUnsubscribe)) / s
	return metrics
}

func countKinds(events []domain.ExperimentEvent, kinds ...domain.EventKind) int {
	n := 0
	for _, e := range events {
		for _, k := range kinds {
			if e.Kind == k {
				n++
				break
			}
		}
	}
	return n
}
