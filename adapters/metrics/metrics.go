// Package metrics provides Prometheus metrics for mounted model routes and
// the discovery pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modelwire"

// Collector holds all Prometheus metrics.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Discovery metrics
	ModelsLoaded      prometheus.Gauge
	APIsMounted       prometheus.Gauge
	RoutesAttached    *prometheus.GaugeVec
	ModelLoadFailures prometheus.Counter
	APILoadFailures   prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates a collector on its own private registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg. When reg is also a
// Gatherer it backs Handler.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests served by model routes",
			},
			[]string{"model", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Model route duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"model", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of model route requests currently being processed",
			},
		),
		ModelsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "models_loaded",
				Help:      "Number of models registered with the data layer",
			},
		),
		APIsMounted: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "apis_mounted",
				Help:      "Number of API descriptors mounted by the last discovery",
			},
		),
		RoutesAttached: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "routes_attached",
				Help:      "Number of routes attached per model",
			},
			[]string{"model"},
		),
		ModelLoadFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_load_failures_total",
				Help:      "Total number of model definition files skipped",
			},
		),
		APILoadFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_load_failures_total",
				Help:      "Total number of API descriptors that failed to mount",
			},
		),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	} else {
		c.gatherer = prometheus.DefaultGatherer
	}
	return c
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Instrument wraps next, recording count, duration and status for the given
// model and route key. A nil collector returns next unchanged.
func (c *Collector) Instrument(model, route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.RequestsInFlight.Inc()
		defer c.RequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.RequestsTotal.WithLabelValues(model, route, StatusClass(status)).Inc()
		c.RequestDuration.WithLabelValues(model, route).Observe(time.Since(start).Seconds())
	})
}

// StatusClass reduces a status code to its class ("2xx", "4xx", ...).
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return strconv.Itoa(status)
	}
	return strconv.Itoa(status/100) + "xx"
}
