// Package metrics owns the server's private Prometheus registry and the
// counters recorded by the account flow and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the custom counters. The zero value is not usable; use New.
type Metrics struct {
	registry     *prometheus.Registry
	AuthEvents   *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

// New creates a registry with Go and process collectors and registers the
// account counters on it.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_auth_events_total",
				Help: "Account flow outcomes by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_http_requests_total",
				Help: "HTTP requests by route name and status code",
			},
			[]string{"route", "code"},
		),
	}

	registry.MustRegister(m.AuthEvents)
	registry.MustRegister(m.HTTPRequests)

	return m
}

// AuthEvent counts one account flow outcome, e.g. ("login", "ok").
func (m *Metrics) AuthEvent(event, outcome string) {
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(route string, code int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
