package news

import (
	"time"

	"github.com/bissquit/news-digest/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "news",
			Name:      "fetch_total",
			Help:      "Article fetches by the source that served them (live, mock, none)",
		},
		[]string{"source"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "news",
			Name:      "search_duration_seconds",
			Help:      "Latency of news provider search requests",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

func recordFetch(s source) {
	fetchTotal.WithLabelValues(string(s)).Inc()
}

func recordSearchDuration(d time.Duration) {
	searchDuration.Observe(d.Seconds())
}
