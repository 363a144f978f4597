// Package metrics exposes the pipeline's observability counters. It is a
// side channel: recording never blocks message handling and never fails it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the counters and the detection latency summary scraped by
// the external collector.
type Pipeline struct {
	Transactions prometheus.Counter
	Fraudulent   prometheus.Counter
	Clean        prometheus.Counter
	SaveFailures prometheus.Counter
	DeadLettered prometheus.Counter

	DetectionTime prometheus.Summary
}

// NewPipeline registers the pipeline metrics on the given registerer.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		Transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fraud_transactions_total",
			Help: "Total transactions processed",
		}),
		Fraudulent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fraud_transactions_fraudulent_total",
			Help: "Total fraudulent transactions detected",
		}),
		Clean: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fraud_transactions_clean_total",
			Help: "Total clean transactions processed",
		}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fraud_saves_failed_total",
			Help: "Fraud records lost after exhausted persistence retries",
		}),
		DeadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fraud_messages_dead_lettered_total",
			Help: "Messages rerouted to the dead-letter channel",
		}),
		DetectionTime: prometheus.NewSummary(prometheus.SummaryOpts{
			Name:       "fraud_detection_seconds",
			Help:       "Time taken by the scoring step",
			Objectives: map[float64]float64{0.5: 0.05, 0.95: 0.01, 0.99: 0.001},
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Transactions,
			m.Fraudulent,
			m.Clean,
			m.SaveFailures,
			m.DeadLettered,
			m.DetectionTime,
		)
	}
	return m
}

// ObserveDetection records one scoring latency sample.
func (m *Pipeline) ObserveDetection(d time.Duration) {
	m.DetectionTime.Observe(d.Seconds())
}
