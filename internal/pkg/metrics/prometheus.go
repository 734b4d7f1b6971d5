package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics (simulator API)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "provtech",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "provtech",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// Push channel metrics
	connectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "provtech",
			Subsystem: "transport",
			Name:      "connection_state",
			Help:      "Current push channel state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "provtech",
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Total number of push channel reconnect attempts",
		},
	)

	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "provtech",
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Total number of push frames received",
		},
		[]string{"type", "outcome"},
	)

	// Snapshot poll metrics
	snapshotPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "provtech",
			Subsystem: "snapshot",
			Name:      "polls_total",
			Help:      "Total number of snapshot polls",
		},
		[]string{"outcome"},
	)

	snapshotPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "provtech",
			Subsystem: "snapshot",
			Name:      "poll_duration_seconds",
			Help:      "Duration of snapshot polls in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	snapshotLastSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "provtech",
			Subsystem: "snapshot",
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last successful snapshot poll",
		},
	)

	// Reconciler metrics
	mergeDeltaTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "provtech",
			Subsystem: "reconcile",
			Name:      "delta_total",
			Help:      "Working set changes by merge source",
		},
		[]string{"source", "change"},
	)

	workingSetSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "provtech",
			Subsystem: "reconcile",
			Name:      "working_set_size",
			Help:      "Number of alerts in the working set by severity",
		},
		[]string{"severity"},
	)

	// Lifecycle action metrics
	lifecycleActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "provtech",
			Subsystem: "lifecycle",
			Name:      "actions_total",
			Help:      "Acknowledge/resolve actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	lifecycleActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "provtech",
			Subsystem: "lifecycle",
			Name:      "action_duration_seconds",
			Help:      "Duration of lifecycle action round trips in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"action"},
	)

	// Notification metrics
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "provtech",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Dispatched notifications by kind",
		},
		[]string{"kind"},
	)

	notificationsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "provtech",
			Subsystem: "notify",
			Name:      "suppressed_total",
			Help:      "Notifications folded into a digest instead of shown",
		},
	)
)

// connectionStates mirrors the transport state machine; SetConnectionState
// keeps exactly one of them at 1.
var connectionStates = []string{"CONNECTING", "OPEN", "CLOSED_RETRYING", "FAILED_PERMANENTLY"}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Get route pattern from chi
		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetConnectionState records the current push channel state
func SetConnectionState(state string) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		connectionState.WithLabelValues(s).Set(v)
	}
}

// RecordReconnect records a push channel reconnect attempt
func RecordReconnect() {
	reconnectsTotal.Inc()
}

// RecordFrame records a received push frame
func RecordFrame(frameType, outcome string) {
	framesTotal.WithLabelValues(frameType, outcome).Inc()
}

// RecordSnapshotPoll records a snapshot poll and its duration
func RecordSnapshotPoll(outcome string, duration time.Duration) {
	snapshotPollsTotal.WithLabelValues(outcome).Inc()
	snapshotPollDuration.Observe(duration.Seconds())
}

// SetLastSync records the time of the last successful snapshot poll
func SetLastSync(t time.Time) {
	snapshotLastSync.Set(float64(t.Unix()))
}

// RecordMergeDelta records working set changes produced by a merge
func RecordMergeDelta(source string, added, removed, updated int) {
	mergeDeltaTotal.WithLabelValues(source, "added").Add(float64(added))
	mergeDeltaTotal.WithLabelValues(source, "removed").Add(float64(removed))
	mergeDeltaTotal.WithLabelValues(source, "updated").Add(float64(updated))
}

// SetWorkingSetSize sets the working set gauge for a severity
func SetWorkingSetSize(severity string, count float64) {
	workingSetSize.WithLabelValues(severity).Set(count)
}

// RecordLifecycleAction records an acknowledge/resolve round trip
func RecordLifecycleAction(action, outcome string, duration time.Duration) {
	lifecycleActionsTotal.WithLabelValues(action, outcome).Inc()
	lifecycleActionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordLifecycleRejected records a transition refused locally, before
// any server call
func RecordLifecycleRejected(action string) {
	lifecycleActionsTotal.WithLabelValues(action, "rejected").Inc()
}

// RecordNotification records a dispatched notification
func RecordNotification(kind string) {
	notificationsTotal.WithLabelValues(kind).Inc()
}

// RecordNotificationSuppressed records a notification folded into a digest
func RecordNotificationSuppressed() {
	notificationsSuppressed.Inc()
}
