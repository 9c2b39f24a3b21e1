// Package observability exposes Prometheus metrics and health endpoints for
// the scoring pipeline.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	sessionsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_sessions_scored_total",
			Help: "Total number of sessions scored",
		},
		[]string{"valid", "risk_level"},
	)

	scoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focusquest_scoring_duration_seconds",
			Help:    "Session scoring pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	xpAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_xp_awarded_total",
			Help: "Total XP awarded",
		},
		[]string{"source"},
	)

	streaksBrokenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusquest_streaks_broken_total",
			Help: "Total number of streak breaks",
		},
	)

	milestonesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_streak_milestones_total",
			Help: "Total number of streak milestones reached",
		},
		[]string{"milestone"},
	)

	tierChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_tier_changes_total",
			Help: "Total number of tier promotions and demotions",
		},
		[]string{"direction", "tier"},
	)

	commitFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusquest_commit_failures_total",
			Help: "Total number of failed state commits",
		},
	)

	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "focusquest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Bus metrics
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_events_published_total",
			Help: "Total number of events published on the bus",
		},
		[]string{"kind"},
	)

	eventsDropped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusquest_events_dropped",
			Help: "Events dropped on full subscriber buffers",
		},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			sessionsScoredTotal,
			scoringDuration,
			xpAwardedTotal,
			streaksBrokenTotal,
			milestonesTotal,
			tierChangesTotal,
			commitFailuresTotal,
			httpRequestsTotal,
			httpRequestDuration,
			eventsPublishedTotal,
			eventsDropped,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordSessionScored records one completed pipeline run.
func RecordSessionScored(valid bool, riskLevel string, duration time.Duration) {
	v := "true"
	if !valid {
		v = "false"
	}
	sessionsScoredTotal.WithLabelValues(v, riskLevel).Inc()
	scoringDuration.Observe(duration.Seconds())
}

// RecordXPAwarded records an XP grant.
func RecordXPAwarded(source string, amount int) {
	xpAwardedTotal.WithLabelValues(source).Add(float64(amount))
}

// RecordStreakBroken records a streak break.
func RecordStreakBroken() {
	streaksBrokenTotal.Inc()
}

// RecordMilestone records a streak milestone.
func RecordMilestone(milestone string) {
	milestonesTotal.WithLabelValues(milestone).Inc()
}

// RecordTierChange records a promotion ("up") or demotion ("down").
func RecordTierChange(direction, tier string) {
	tierChangesTotal.WithLabelValues(direction, tier).Inc()
}

// RecordCommitFailure records a failed commit.
func RecordCommitFailure() {
	commitFailuresTotal.Inc()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEventPublished records a bus publish.
func RecordEventPublished(kind string) {
	eventsPublishedTotal.WithLabelValues(kind).Inc()
}

// SetEventsDropped sets the dropped-events gauge.
func SetEventsDropped(count uint64) {
	eventsDropped.Set(float64(count))
}
