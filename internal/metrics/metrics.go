// Package metrics exposes Prometheus instrumentation for the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the instrumentation surface used by handlers.
type Recorder interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
	RecordAuthEvent(event string, success bool)
	RecordRateLimited(route string)
	RecordSubmission(kind string)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	authEvents  *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	submissions *prometheus.CounterVec
}

// NewCollector registers the metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agency_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agency_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agency_auth_events_total",
			Help: "Sign-up, sign-in, refresh and sign-out attempts by outcome.",
		}, []string{"event", "success"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agency_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agency_submissions_total",
			Help: "Accepted contact messages and project requests.",
		}, []string{"kind"}),
	}

	reg.MustRegister(c.requests, c.latency, c.authEvents, c.rateLimited, c.submissions)
	return c
}

// NewRegistry returns a registry with the Go and process collectors installed.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordAuthEvent(event string, success bool) {
	c.authEvents.WithLabelValues(event, strconv.FormatBool(success)).Inc()
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

func (c *Collector) RecordSubmission(kind string) {
	c.submissions.WithLabelValues(kind).Inc()
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) RecordAuthEvent(string, bool)                      {}
func (Nop) RecordRateLimited(string)                          {}
func (Nop) RecordSubmission(string)                           {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
