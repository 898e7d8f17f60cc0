package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PollCycles counts poll cycles by outcome: new, idle, error
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsroom_poll_cycles_total",
			Help: "Total number of inbox poll cycles by result",
		},
		[]string{"result"},
	)

	// EmailsIngested counts newly stored emails per category
	EmailsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsroom_emails_ingested_total",
			Help: "Total number of new emails stored, by category",
		},
		[]string{"category"},
	)

	// PollReconnects counts reconnect attempts after a failed cycle
	PollReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsroom_poll_reconnects_total",
			Help: "Total number of mailbox reconnect attempts",
		},
	)

	// LLMCallDuration tracks model call latency in seconds
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsroom_llm_call_duration_seconds",
			Help:    "LLM call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		},
		[]string{"provider", "status"},
	)

	// AnalysesWritten counts category analysis rewrites by the synthesizer
	AnalysesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsroom_analyses_written_total",
			Help: "Total number of category analysis documents rewritten",
		},
		[]string{"category"},
	)

	// NewsletterScore records the final score of each newsletter run
	NewsletterScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsroom_newsletter_score",
			Help:    "Final evaluator score of generated newsletters",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
