package app

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and the counters fed by the HTTP
// middleware, the silent-renewal interceptor, and the token sweeper.
type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	TokensIssued      prometheus.Counter
	TokenRotations    prometheus.Counter
	RotationConflicts prometheus.Counter
	TokensSwept       prometheus.Counter
}

// NewMetrics builds a self-contained registry with process and Go runtime
// collectors plus the application counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reg: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vb",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "status"}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vb",
			Name:      "tokens_issued_total",
			Help:      "Credentials issued, counting logins and rotations.",
		}),
		TokenRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vb",
			Name:      "token_rotations_total",
			Help:      "Tokens silently rotated by the renewal interceptor.",
		}),
		RotationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vb",
			Name:      "token_rotation_conflicts_total",
			Help:      "Refresh attempts that lost the rotation race.",
		}),
		TokensSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vb",
			Name:      "tokens_swept_total",
			Help:      "Dead token records removed by the cleanup sweeper.",
		}),
	}
	reg.MustRegister(m.HTTPRequests, m.TokensIssued, m.TokenRotations, m.RotationConflicts, m.TokensSwept)
	return m
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
