package digest

import (
	"time"

	"github.com/bissquit/news-digest/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	digestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "digest",
			Name:      "dispatched_total",
			Help:      "Digest dispatch outcomes (delivered, logged, skipped)",
		},
		[]string{"outcome"},
	)

	providerSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "digest",
			Name:      "send_duration_seconds",
			Help:      "Time spent in the email provider",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "digest",
			Name:      "job_runs_total",
			Help:      "Batch digest runs by result",
		},
		[]string{"result"},
	)

	jobSubscribersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "digest",
			Name:      "job_subscribers_total",
			Help:      "Subscribers processed by batch runs, by result",
		},
		[]string{"result"},
	)

	jobRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "digest",
			Name:      "job_duration_seconds",
			Help:      "Duration of batch digest runs",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900},
		},
	)
)

func recordOutcome(o Outcome) {
	digestsTotal.WithLabelValues(string(o)).Inc()
}

func recordProviderDuration(provider string, d time.Duration) {
	providerSendDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func recordRun(stats RunStats, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	jobRunsTotal.WithLabelValues(result).Inc()
	jobRunDuration.Observe(stats.Duration.Seconds())

	jobSubscribersTotal.WithLabelValues("sent").Add(float64(stats.Sent))
	jobSubscribersTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	jobSubscribersTotal.WithLabelValues("failed").Add(float64(stats.Failed))
}
