package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderCreated("COD")
	m.OrderCreated("COD")
	m.OrderCreated("BARIDIMOB")
	m.FeeFallback()
	m.Webhook("applied")
	m.ObserveHTTP(http.MethodPost, "/api/orders", http.StatusCreated, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersCreated.WithLabelValues("COD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreated.WithLabelValues("BARIDIMOB")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShippingFeeFallback))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/orders", "201")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated("COD")
		m.FeeFallback()
		m.Webhook("failed")
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.OrderCreated("COD")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `orders_created_total{payment_method="COD"} 1`)
}
