package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// RunnerCases counts executed test cases by outcome: passed, failed, error, timeout, rejected.
	RunnerCases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runner_cases_total",
			Help: "Test cases executed by the code runner",
		},
		[]string{"outcome"},
	)

	RunnerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runner_case_duration_seconds",
			Help:    "Wall-clock duration of a single test case execution",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	ProgressWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_writes_total",
			Help: "Progress records written",
		},
		[]string{"kind", "status"},
	)

	AliasConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_alias_conflicts_total",
			Help: "Lookups where progress stored under different aliases of one lesson disagreed",
		},
		[]string{"kind"},
	)

	AchievementGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievement_grants_total",
			Help: "Achievements newly granted",
		},
		[]string{"achievement"},
	)

	AchievementFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "achievement_scan_failures_total",
			Help: "Achievement scans that failed after a committed progress write",
		},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		RunnerCases,
		RunnerDuration,
		ProgressWrites,
		AliasConflicts,
		AchievementGrants,
		AchievementFailures,
	)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
