// Package metrics holds the Prometheus collectors exported by signgate.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signgate"

// ResultAuthenticated labels verdicts that let the request through.
const ResultAuthenticated = "authenticated"

// Metrics groups the service collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	authVerdictsTotal *prometheus.CounterVec
	authDuration      prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	stakeLookupsTotal   *prometheus.CounterVec
	stakeLookupDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go and process
// collectors, on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		authVerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_verdicts_total",
				Help:      "Total number of request authentication verdicts by result",
			},
			[]string{"result"},
		),
		authDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auth_duration_seconds",
				Help:      "Time spent authenticating a request",
				Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		stakeLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stake_lookups_total",
				Help:      "Total number of stake lookups by source and result",
			},
			[]string{"source", "result"},
		),
		stakeLookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stake_lookup_duration_seconds",
				Help:      "Stake lookup duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
	}

	toRegister := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authVerdictsTotal,
		m.authDuration,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.stakeLookupsTotal,
		m.stakeLookupDuration,
	}

	for _, c := range toRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAuth records one authentication verdict.
func (m *Metrics) ObserveAuth(result string, elapsed time.Duration) {
	m.authVerdictsTotal.WithLabelValues(result).Inc()
	m.authDuration.Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveStakeLookup records one stake source call.
func (m *Metrics) ObserveStakeLookup(source string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	m.stakeLookupsTotal.WithLabelValues(source, result).Inc()
	m.stakeLookupDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}
