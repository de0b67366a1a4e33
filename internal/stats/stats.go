// Package stats holds the significance math used to judge experiments.
//
// Both functions work on aggregated counts only. The two-proportion test
// maps its z-score onto a small set of discrete confidence levels rather
// than computing a p-value, so fixtures built on those levels stay stable.
package stats

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when a sample is empty.
var ErrInsufficientData = errors.New("insufficient data for analysis")

// Interval is a two-sided confidence interval for a rate, clamped to [0,1].
type Interval struct {
	Lower float64
	Upper float64
}

// zTable maps supported confidence targets to their two-sided z value.
var zTable = []struct {
	confidence float64
	z          float64
}{
	{0.90, 1.645},
	{0.95, 1.96},
	{0.99, 2.576},
}

// confidenceLevels maps z-score thresholds to the confidence they certify.
// Ordered from the strictest threshold down.
var confidenceLevels = []struct {
	z          float64
	confidence float64
}{
	{2.576, 0.99},
	{1.96, 0.95},
	{1.645, 0.90},
	{1.28, 0.80},
}

// ZScore returns the z value for a confidence target. Targets within 0.01
// of 90%, 95% or 99% use the tabulated value; anything else uses 1.96.
func ZScore(confidence float64) float64 {
	for _, row := range zTable {
		if math.Abs(confidence-row.confidence) < 0.01 {
			return row.z
		}
	}
	return 1.96
}

// ConfidenceInterval computes the normal-approximation interval of rate p
// observed over n samples.
func ConfidenceInterval(p float64, n int, confidence float64) (Interval, error) {
	if n <= 0 {
		return Interval{}, ErrInsufficientData
	}
	margin := ZScore(confidence) * math.Sqrt(p*(1-p)/float64(n))
	return Interval{
		Lower: math.Max(0, p-margin),
		Upper: math.Min(1, p+margin),
	}, nil
}

// TwoProportionConfidence runs a pooled two-proportion z-test between
// (p1, n1) and (p2, n2) and returns the discrete confidence level the
// difference reaches: 0.99, 0.95, 0.90, 0.80 or 0.
func TwoProportionConfidence(p1 float64, n1 int, p2 float64, n2 int) (float64, error) {
	if n1 <= 0 || n2 <= 0 {
		return 0, ErrInsufficientData
	}
	z := TwoProportionZ(p1, n1, p2, n2)
	return ConfidenceForZ(z), nil
}

// TwoProportionZ returns |p1-p2| divided by the pooled standard error, or 0
// when the standard error is 0.
func TwoProportionZ(p1 float64, n1 int, p2 float64, n2 int) float64 {
	f1, f2 := float64(n1), float64(n2)
	pooled := (p1*f1 + p2*f2) / (f1 + f2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/f1 + 1/f2))
	if se == 0 || math.IsNaN(se) {
		return 0
	}
	return math.Abs(p1-p2) / se
}

// ConfidenceForZ maps a z-score to its discrete confidence level.
func ConfidenceForZ(z float64) float64 {
	for _, lvl := range confidenceLevels {
		if z >= lvl.z {
			return lvl.confidence
		}
	}
	return 0
}
