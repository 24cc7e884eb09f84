package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdfdesk"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code",
		},
		[]string{"route", "status"},
	)

	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by route pattern",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	artifactsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Job files written, by operation",
		},
		[]string{"kind"},
	)

	pagesSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_selected_total",
			Help:      "Pages copied into output documents, by selection mode",
		},
		[]string{"mode"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)

	jobsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_swept_total",
			Help:      "Job directories removed by retention sweeps",
		},
	)
)

var once sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(httpReqs, httpLatency, artifactsWritten, pagesSelected, rateLimited, jobsSwept)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRequest(route string, status int, dur time.Duration) {
	httpReqs.WithLabelValues(route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(route).Observe(dur.Seconds())
}

func IncArtifacts(kind string, n int) { artifactsWritten.WithLabelValues(kind).Add(float64(n)) }
func AddPages(mode string, n int)     { pagesSelected.WithLabelValues(mode).Add(float64(n)) }
func IncRateLimited()                 { rateLimited.Inc() }
func AddSwept(n int)                  { jobsSwept.Add(float64(n)) }
