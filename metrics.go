package imagesearch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagesearch_searches_total",
		Help: "Provider searches by outcome",
	}, []string{"provider", "outcome"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imagesearch_search_duration_seconds",
		Help:    "Provider search latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	imagesReturned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagesearch_images_returned_total",
		Help: "Image records returned by provider",
	}, []string{"provider"})

	httpRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagesearch_http_retries_total",
		Help: "HTTP attempts retried after a transient failure",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagesearch_downloads_total",
		Help: "Bulk image downloads by outcome",
	}, []string{"outcome"})
)
