package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "readpage"

// Metrics methods are safe on a nil receiver so services can run without them.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	PaymentsProcessed *prometheus.CounterVec
	OrdersCreated     *prometheus.CounterVec
	BookCache         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		PaymentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_processed_total",
			Help:      "Total number of payment attempts by resulting status",
		}, []string{"status"}),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Total number of order rows created",
		}, []string{"payment_method"}),
		BookCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "book_cache_requests_total",
			Help:      "Book cache lookups by result",
		}, []string{"result"}),
	}

	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.PaymentsProcessed, m.OrdersCreated, m.BookCache)
	return m
}

func (m *Metrics) ObserveRequest(method, endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPDuration.WithLabelValues(method, endpoint).Observe(seconds)
}

func (m *Metrics) RecordPaymentProcessed(status string) {
	if m == nil {
		return
	}
	m.PaymentsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordOrdersCreated(method string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrdersCreated.WithLabelValues(method).Add(float64(n))
}

func (m *Metrics) RecordCacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.BookCache.WithLabelValues(result).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
