package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetrack_http_requests_total",
			Help: "Total HTTP requests served.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filetrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetrack_lifecycle_transitions_total",
			Help: "Committed lifecycle transitions by target status and path.",
		},
		[]string{"status", "path"},
	)

	filesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filetrack_files_received_total",
			Help: "Files received for digitization.",
		},
	)

	scanUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetrack_scan_uploads_total",
			Help: "Scan artifacts uploaded, by page count match.",
		},
		[]string{"pages_match"},
	)

	scanUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filetrack_scan_upload_bytes",
			Help:    "Size of uploaded scan artifacts.",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
		},
	)
)

// IncTransition counts a committed status change.
func IncTransition(status, path string) {
	transitionsTotal.WithLabelValues(status, path).Inc()
}

// IncFilesReceived counts a new receipt.
func IncFilesReceived() {
	filesReceivedTotal.Inc()
}

// ObserveScanUpload records an uploaded artifact.
func ObserveScanUpload(sizeBytes int64, pagesMatch bool) {
	scanUploadsTotal.WithLabelValues(strconv.FormatBool(pagesMatch)).Inc()
	scanUploadBytes.Observe(float64(sizeBytes))
}

// Middleware records request counts and latency keyed by the route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
