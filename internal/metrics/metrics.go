// Package metrics exposes Prometheus collectors for the archiver.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsIngestedTotal *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
	verifyChecksTotal  *prometheus.CounterVec
	cyclesTotal        prometheus.Counter
	feedErrorsTotal    *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		postsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_posts_ingested_total",
				Help: "Total number of new posts ingested, labeled by subreddit.",
			},
			[]string{"subreddit"},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_submissions_total",
				Help: "Total archival submissions, labeled by service, variant and outcome.",
			},
			[]string{"service", "variant", "outcome"},
		)

		verifyChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_verify_checks_total",
				Help: "Total Wayback availability checks, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		cyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "archiver_cycles_total",
				Help: "Total polling cycles completed.",
			},
		)

		feedErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_feed_errors_total",
				Help: "Total feed poll failures, labeled by subreddit.",
			},
			[]string{"subreddit"},
		)
	})
}

// PostIngested records one newly ingested post.
func PostIngested(subreddit string) {
	if postsIngestedTotal == nil {
		return
	}
	postsIngestedTotal.WithLabelValues(subreddit).Inc()
}

// SubmissionObserved records one archival submission attempt.
func SubmissionObserved(service, variant, outcome string) {
	if submissionsTotal == nil {
		return
	}
	submissionsTotal.WithLabelValues(service, variant, outcome).Inc()
}

// VerifyCheckObserved records one availability-check outcome.
func VerifyCheckObserved(outcome string) {
	if verifyChecksTotal == nil {
		return
	}
	verifyChecksTotal.WithLabelValues(outcome).Inc()
}

// CycleCompleted records one completed polling cycle.
func CycleCompleted() {
	if cyclesTotal == nil {
		return
	}
	cyclesTotal.Inc()
}

// FeedError records one failed feed poll.
func FeedError(subreddit string) {
	if feedErrorsTotal == nil {
		return
	}
	feedErrorsTotal.WithLabelValues(subreddit).Inc()
}
