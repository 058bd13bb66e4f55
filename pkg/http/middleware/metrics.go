package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "SignalFlow/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpCollectors struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	size     *prometheus.HistogramVec
}

var (
	collectorsOnce sync.Once
	collectors     *httpCollectors
)

func httpMetrics() *httpCollectors {
	collectorsOnce.Do(func() {
		labels := []string{"route", "method", "class"}
		collectors = &httpCollectors{
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "signalflow_http_requests_total",
				Help: "HTTP requests by route and status",
			}, []string{"route", "method", "status"}),
			duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "signalflow_http_request_duration_seconds",
				Help:    "HTTP request latency; analysis runs can take tens of seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			}, labels),
			inFlight: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "signalflow_http_in_flight_requests",
				Help: "HTTP requests currently being served",
			}, []string{"route"}),
			size: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "signalflow_http_response_size_bytes",
				Help:    "HTTP response body size",
				Buckets: prometheus.ExponentialBuckets(128, 4, 8),
			}, labels),
		}
	})
	return collectors
}

// Metrics records request metrics labelled by the echo route template. 5xx
// responses are logged as errors and slow non-websocket requests as warnings.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	m := httpMetrics()
	if l == nil {
		l = applogger.Nop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route, method := routeLabel(c), c.Request().Method
			m.inFlight.WithLabelValues(route).Inc()
			defer m.inFlight.WithLabelValues(route).Dec()

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			took := time.Since(start)

			code := c.Response().Status
			class := statusClass(code)
			m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
			m.duration.WithLabelValues(route, method, class).Observe(took.Seconds())
			m.size.WithLabelValues(route, method, class).Observe(float64(c.Response().Size))

			switch {
			case code >= 500:
				l.Error("http request failed", requestFields(c, route, code, took)...)
			case !c.IsWebSocket() && slowThreshold > 0 && took >= slowThreshold:
				l.Warn("http request slow", requestFields(c, route, code, took)...)
			}
			return nil
		}
	}
}

func requestFields(c echo.Context, route string, code int, took time.Duration) []applogger.Field {
	return []applogger.Field{
		applogger.String("request_id", RequestID(c)),
		applogger.String("route", route),
		applogger.String("method", c.Request().Method),
		applogger.Int("status", code),
		applogger.Duration("duration_ms", took),
	}
}

// routeLabel prefers the registered route template to keep cardinality low.
func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
