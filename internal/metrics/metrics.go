// Package metrics holds the Prometheus collectors of the portal.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the portal collectors on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	statusUpdates *prometheus.CounterVec
	apiLogins     *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "logins_total",
			Help:      "Web login attempts by outcome.",
		}, []string{"outcome"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "status_updates_total",
			Help:      "Administrative status updates by new status.",
		}, []string{"status"}),
		apiLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "api_logins_total",
			Help:      "Machine client logins by outcome.",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.registrations,
		m.logins,
		m.statusUpdates,
		m.apiLogins,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registration counts a registration outcome.
func (m *Metrics) Registration(outcome string) { m.registrations.WithLabelValues(outcome).Inc() }

// Login counts a web login outcome.
func (m *Metrics) Login(outcome string) { m.logins.WithLabelValues(outcome).Inc() }

// APILogin counts a machine client login outcome.
func (m *Metrics) APILogin(outcome string) { m.apiLogins.WithLabelValues(outcome).Inc() }

// StatusUpdate counts an applied status change.
func (m *Metrics) StatusUpdate(status string) { m.statusUpdates.WithLabelValues(status).Inc() }
