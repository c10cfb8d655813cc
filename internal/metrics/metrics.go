// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal              *prometheus.CounterVec
	articlesTotal           *prometheus.CounterVec
	jobsTotal               *prometheus.CounterVec
	extractionTierTotal     *prometheus.CounterVec
	validationScore         prometheus.Histogram
	fetchDurationSeconds    *prometheus.HistogramVec
	rateLimitDelaysSeconds  *prometheus.HistogramVec
	activeWorkers           prometheus.Gauge
	discoveredURLsPerSource *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_articles_total",
				Help: "Total number of article outcomes, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_jobs_total",
				Help: "Total number of scraping jobs, labeled by status.",
			},
			[]string{"status"},
		)

		extractionTierTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_extraction_tier_total",
				Help: "Extraction attempts that produced content, labeled by tier.",
			},
			[]string{"tier"},
		)

		validationScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "newscrawler_validation_score",
				Help:    "Distribution of content validation scores.",
				Buckets: []float64{10, 25, 50, 70, 80, 90, 100},
			},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newscrawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by fetcher.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"fetcher"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newscrawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by domain.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"domain"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "newscrawler_active_workers",
				Help: "Number of workers currently processing an article URL.",
			},
		)

		discoveredURLsPerSource = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_discovered_urls_total",
				Help: "Candidate article URLs discovered, labeled by source strategy.",
			},
			[]string{"source"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the fetched-page counter.
func ObservePage(site, status string) {
	pagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveArticle increments the article outcome counter.
func ObserveArticle(site, outcome string) {
	articlesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveExtractionTier records which tier produced usable content.
func ObserveExtractionTier(tier string) {
	extractionTierTotal.WithLabelValues(tier).Inc()
}

// ObserveValidationScore records a content validation score.
func ObserveValidationScore(score float64) {
	validationScore.Observe(score)
}

// ObserveFetchDuration records a page fetch latency.
func ObserveFetchDuration(fetcher string, d time.Duration) {
	fetchDurationSeconds.WithLabelValues(fetcher).Observe(d.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(d.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveDiscoveredURLs adds to the discovery counter for a source strategy.
func ObserveDiscoveredURLs(source string, n int) {
	if n > 0 {
		discoveredURLsPerSource.WithLabelValues(source).Add(float64(n))
	}
}
