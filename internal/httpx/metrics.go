package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	service         string
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	externalLatency *prometheus.HistogramVec
	linkRewrites    *prometheus.CounterVec
	probesTotal     *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on a private registry
// together with the Go and process collectors.
func NewMetrics(service string) *Metrics {
	m := &Metrics{
		service:  service,
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenlist",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "greenlist",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request durations in seconds.",
		}, []string{"service", "method", "path", "status"}),
		externalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "greenlist",
			Subsystem: "external",
			Name:      "operation_duration_seconds",
			Help:      "Duration of external operations in seconds.",
		}, []string{"service", "component", "method", "status"}),
		linkRewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenlist",
			Subsystem: "links",
			Name:      "decisions_total",
			Help:      "URL decisions taken by the link guard, by action.",
		}, []string{"service", "action"}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenlist",
			Subsystem: "links",
			Name:      "probes_total",
			Help:      "Liveness probes issued, by method and outcome.",
		}, []string{"service", "method", "outcome"}),
	}
	m.registry.MustRegister(m.Collectors()...)
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requestsTotal, m.requestDuration, m.externalLatency, m.linkRewrites, m.probesTotal}
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware() echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return next(c)
			}
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			if status == 0 {
				status = http.StatusOK
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}

			labels := []string{m.service, c.Request().Method, path, strconv.Itoa(status)}
			m.requestsTotal.WithLabelValues(labels...).Inc()
			m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

func (m *Metrics) ObserveDB(method string, err error, duration time.Duration) {
	m.observeExternal("db", method, err, duration)
}

func (m *Metrics) ObserveSearch(method string, err error, duration time.Duration) {
	m.observeExternal("meilisearch", method, err, duration)
}

func (m *Metrics) ObserveOpenAI(method string, err error, duration time.Duration) {
	m.observeExternal("openai", method, err, duration)
}

// ObserveProbe records one liveness request. Transport failures count as
// "error" rather than "dead".
func (m *Metrics) ObserveProbe(method string, live bool, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "live"
	switch {
	case err != nil:
		outcome = "error"
	case !live:
		outcome = "dead"
	}
	m.probesTotal.WithLabelValues(m.service, method, outcome).Inc()
	m.observeExternal("liveness", method, err, duration)
}

func (m *Metrics) ObserveRewrite(action string) {
	if m == nil {
		return
	}
	m.linkRewrites.WithLabelValues(m.service, action).Inc()
}

func (m *Metrics) observeExternal(component, method string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.externalLatency.WithLabelValues(m.service, component, method, status).Observe(duration.Seconds())
}
