package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shouni/nanobanana-studio/pkg/storage"
)

const metricsNamespace = "nanobanana"

// Metrics はサーバーが公開する Prometheus 指標です。
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	generationsTotal    *prometheus.CounterVec
	generationDuration  *prometheus.HistogramVec
	deliveriesTotal     *prometheus.CounterVec
}

// NewMetrics は専用のレジストリに指標を登録します。
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "generations_total",
				Help:      "Total number of image generation requests",
			},
			[]string{"model", "status"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "generation_duration_seconds",
				Help:      "Image generation duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"model"},
		),
		deliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "deliveries_total",
				Help:      "Total number of delivery attempts by target",
			},
			[]string{"target", "status"},
		),
	}
}

// Handler は /metrics 用のハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeDelivery(res storage.Result) {
	if res.B2 != nil {
		m.deliveriesTotal.WithLabelValues("b2", deliveryStatus(*res.B2)).Inc()
	}
	if res.Webhook != nil {
		m.deliveriesTotal.WithLabelValues("webhook", deliveryStatus(*res.Webhook)).Inc()
	}
}

// deliveryStatus は B2 の URL を success に丸めます。
func deliveryStatus(v string) string {
	if v == storage.StatusError {
		return storage.StatusError
	}
	return storage.StatusSuccess
}
