// Package observability exposes Prometheus metrics for the SignLink server.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Detection stream metrics
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlink_frames_total",
			Help: "Total number of stream frames processed",
		},
		[]string{"result"},
	)

	inferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signlink_inference_duration_seconds",
			Help:    "Classifier call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signlink_active_detection_sessions",
			Help: "Number of open detection stream sessions",
		},
	)

	// Collaborator metrics
	cleanupFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signlink_cleanup_fallbacks_total",
			Help: "Times text normalization fell back to raw input",
		},
	)

	externalCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signlink_external_calls_total",
			Help: "Total calls to external collaborators",
		},
		[]string{"service", "status"},
	)

	initOnce sync.Once
)

// Frame result labels.
const (
	FrameEmitted       = "emitted"
	FrameSuppressed    = "suppressed"
	FrameLowConfidence = "low_confidence"
	FrameError         = "error"
)

// Init registers all collectors with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal,
			inferenceDuration,
			activeSessions,
			cleanupFallbacksTotal,
			externalCallsTotal,
		)
	})
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFrame counts one processed stream frame by outcome.
func RecordFrame(result string) {
	framesTotal.WithLabelValues(result).Inc()
}

// RecordInference observes one classifier call duration.
func RecordInference(d time.Duration) {
	inferenceDuration.Observe(d.Seconds())
}

// SessionOpened increments the active session gauge.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func SessionClosed() {
	activeSessions.Dec()
}

// RecordCleanupFallback counts one degraded normalization response.
func RecordCleanupFallback() {
	cleanupFallbacksTotal.Inc()
}

// RecordExternalCall counts one collaborator call by service and outcome.
func RecordExternalCall(service, status string) {
	externalCallsTotal.WithLabelValues(service, status).Inc()
}
