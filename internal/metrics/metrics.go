// Package metrics holds the Prometheus collectors of the storefront.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is then a
// no-op, which keeps tests free of registries.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	OrdersCreated       *prometheus.CounterVec
	ShippingFeeFallback prometheus.Counter
	WebhookEvents       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders placed, by payment method.",
		}, []string{"payment_method"}),
		ShippingFeeFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shipping_fee_fallback_total",
			Help: "Fee quotes answered with the fixed fallback fee.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Carrier webhook events by outcome.",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrdersCreated,
		m.ShippingFeeFallback,
		m.WebhookEvents,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) OrderCreated(method string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(method).Inc()
}

func (m *Metrics) FeeFallback() {
	if m == nil {
		return
	}
	m.ShippingFeeFallback.Inc()
}

// Webhook results: applied, duplicate, ignored, rejected, failed.
func (m *Metrics) Webhook(result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(result).Inc()
}
