// Package metrics exposes the gateway's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the gateway's instrument set.
type Metrics struct {
	TokensMinted       prometheus.Counter
	TokenMintFailures  prometheus.Counter
	SummariesRequested prometheus.Counter
	SummaryFailures    prometheus.Counter
	InterviewsSaved    prometheus.Counter
	LiveSessions       prometheus.Gauge
	LiveObservers      prometheus.Gauge
	SummaryDuration    prometheus.Histogram
}

// New registers the instrument set on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TokensMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "prepvoice_tokens_minted_total",
			Help: "Ephemeral realtime credentials issued.",
		}),
		TokenMintFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prepvoice_token_mint_failures_total",
			Help: "Failed attempts to mint a realtime credential.",
		}),
		SummariesRequested: factory.NewCounter(prometheus.CounterOpts{
			Name: "prepvoice_summaries_requested_total",
			Help: "Coaching summary requests received.",
		}),
		SummaryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prepvoice_summary_failures_total",
			Help: "Coaching summary requests that failed.",
		}),
		InterviewsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "prepvoice_interviews_saved_total",
			Help: "Interview history rows persisted.",
		}),
		LiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "prepvoice_live_sessions",
			Help: "Live transcript relay sessions currently open.",
		}),
		LiveObservers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "prepvoice_live_observers",
			Help: "Observers currently attached to live sessions.",
		}),
		SummaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prepvoice_summary_duration_seconds",
			Help:    "Latency of summary generation.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
