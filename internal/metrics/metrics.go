// Package metrics exposes the engine's prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "newsletter_engine"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	// OutcomeExisting labels an assignment answered from the stored mapping.
	OutcomeExisting = "existing"
)

var (
	assignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Experiment assignment requests, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	engagementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engagements_total",
			Help:      "Tracked campaign engagements, partitioned by kind.",
		},
		[]string{"kind"},
	)

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Newsletter messages handed to the transport, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	sendCycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_cycle_seconds",
			Help:      "Duration of complete send cycles.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	trackingMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_messages_total",
			Help:      "Tracking queue messages, partitioned by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	snapshotSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_seconds",
			Help:      "Snapshot save latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests, partitioned by method and status code.",
		},
		[]string{"method", "code"},
	)
)

// Register attaches the collectors to reg. Registering twice is harmless.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		assignmentsTotal,
		engagementsTotal,
		messagesTotal,
		sendCycleSeconds,
		trackingMessagesTotal,
		snapshotSeconds,
		httpRequestsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveAssignment counts one assign call.
func ObserveAssignment(existing bool, err error) {
	label := outcome(err)
	if err == nil && existing {
		label = OutcomeExisting
	}
	assignmentsTotal.WithLabelValues(label).Inc()
}

// IncEngagement counts one tracked engagement.
func IncEngagement(kind string) {
	engagementsTotal.WithLabelValues(kind).Inc()
}

// ObserveSendCycle records a finished cycle and its per-message tally.
func ObserveSendCycle(duration time.Duration, successful, failed int) {
	if duration < 0 {
		duration = 0
	}
	sendCycleSeconds.Observe(duration.Seconds())
	messagesTotal.WithLabelValues(OutcomeSuccess).Add(float64(successful))
	messagesTotal.WithLabelValues(OutcomeError).Add(float64(failed))
}

// IncTracking counts a tracking message at a stage ("publish", "consume").
func IncTracking(stage string, err error) {
	trackingMessagesTotal.WithLabelValues(stage, outcome(err)).Inc()
}

// ObserveSnapshot records one snapshot save.
func ObserveSnapshot(duration time.Duration, err error) {
	snapshotSeconds.WithLabelValues(outcome(err)).Observe(duration.Seconds())
}

// ObserveRequest counts one API request.
func ObserveRequest(method string, code int) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
