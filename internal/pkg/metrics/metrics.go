package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "otrack",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Course pipeline metrics
	CoursesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "courses",
		Name:      "parsed_total",
		Help:      "Total course files parsed, by detected format",
	}, []string{"format"})

	ParseWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "courses",
		Name:      "parse_warnings_total",
		Help:      "Total warnings emitted while parsing course files",
	})

	ForkVariantsExpanded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "courses",
		Name:      "fork_variants_total",
		Help:      "Total forked course variants expanded",
	})

	CalibrationSolves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "calibration",
		Name:      "solves_total",
		Help:      "Total successful affine calibration solves",
	})

	CalibrationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "calibration",
		Name:      "failures_total",
		Help:      "Total calibration solves rejected as degenerate",
	})

	// Detection metrics
	PunchesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "detect",
		Name:      "punches_total",
		Help:      "Total virtual punches detected",
	})

	AccuracyWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "detect",
		Name:      "accuracy_warnings_total",
		Help:      "Total position samples flagged for poor GPS accuracy",
	})

	PositionsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "otrack",
		Subsystem: "detect",
		Name:      "positions_ingested_total",
		Help:      "Total GPS position samples ingested",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "otrack",
		Subsystem: "detect",
		Name:      "active_sessions",
		Help:      "Current number of live tracking sessions",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "otrack",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
