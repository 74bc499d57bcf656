package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codewire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codewire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	wireMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codewire",
			Subsystem: "wire",
			Name:      "messages_total",
			Help:      "Messages moved across the wire.",
		},
		[]string{"direction", "tag"},
	)
	wireBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codewire",
			Subsystem: "wire",
			Name:      "bytes_total",
			Help:      "Bytes moved across the wire.",
		},
		[]string{"direction"},
	)
	wireDecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codewire",
			Subsystem: "wire",
			Name:      "decode_errors_total",
			Help:      "Messages rejected by the decoder.",
		},
		[]string{"reason"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "codewire",
			Subsystem: "wire",
			Name:      "active_sessions",
			Help:      "Connections currently serviced by the host.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, wireMessages, wireBytes, wireDecodeErrors, activeSessions)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordWireMessage counts one framed message. direction is "in" or
// "out"; tag is the numeric message tag.
func RecordWireMessage(direction string, tag int32) {
	RegisterMetrics()
	wireMessages.WithLabelValues(direction, strconv.Itoa(int(tag))).Inc()
}

func RecordWireBytes(direction string, n int) {
	RegisterMetrics()
	wireBytes.WithLabelValues(direction).Add(float64(n))
}

func RecordDecodeError(reason string) {
	RegisterMetrics()
	wireDecodeErrors.WithLabelValues(reason).Inc()
}

func SessionOpened() {
	RegisterMetrics()
	activeSessions.Inc()
}

func SessionClosed() {
	RegisterMetrics()
	activeSessions.Dec()
}
