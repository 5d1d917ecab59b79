package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric exported by the service.
const Namespace = "campusweb"

type IncrementalCounter interface {
	Increment(val ...string)
}

type Observer interface {
	Observe(v float64, val ...string)
}

type Counter struct {
	Name string
	Help string

	vec *prometheus.CounterVec
}

func (c *Counter) Increment(val ...string) {
	c.vec.WithLabelValues(val...).Inc()
}

func NewCounter(reg prometheus.Registerer, name, help string, labels ...string) *Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)

	reg.MustRegister(vec)

	return &Counter{
		Name: name,
		Help: help,
		vec:  vec,
	}
}

type Histogram struct {
	Name string
	Help string

	vec *prometheus.HistogramVec
}

func (h *Histogram) Observe(v float64, val ...string) {
	h.vec.WithLabelValues(val...).Observe(v)
}

func NewHistogram(reg prometheus.Registerer, name, help string, labels ...string) *Histogram {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)

	reg.MustRegister(vec)

	return &Histogram{
		Name: name,
		Help: help,
		vec:  vec,
	}
}

// Metrics groups the instruments recorded by the service.
type Metrics struct {
	// Fetches counts CMS fetches by resource (menus, settings) and result (ok, error).
	Fetches IncrementalCounter

	// Enquiries counts enquiry submissions by result (ok, invalid, error).
	Enquiries IncrementalCounter

	// Requests observes HTTP request durations in seconds by method, route and status.
	Requests Observer
}

// New registers the service metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Fetches:   NewCounter(reg, "cms_fetch_total", "CMS fetches by resource and result.", "resource", "result"),
		Enquiries: NewCounter(reg, "enquiry_total", "Enquiry submissions by result.", "result"),
		Requests:  NewHistogram(reg, "http_request_duration_seconds", "HTTP request duration.", "method", "route", "status"),
	}
}

// Nop returns Metrics backed by a private registry that is never exported.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns an HTTP handler for serving Prometheus metrics from a custom registry.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
