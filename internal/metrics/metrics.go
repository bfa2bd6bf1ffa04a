package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the notification flow. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	NotificationsTotal       *prometheus.CounterVec
	NotificationsRateLimited prometheus.Counter
	DeliveriesTotal          *prometheus.CounterVec
	DeliveryDuration         *prometheus.HistogramVec
	DeliveryQueueDepth       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifycar_notifications_total",
				Help: "Notifications persisted, by type.",
			},
			[]string{"type"},
		),
		NotificationsRateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notifycar_notifications_rate_limited_total",
				Help: "Sends rejected because the vehicle is in cooldown.",
			},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifycar_deliveries_total",
				Help: "Outbound delivery attempts by channel and result.",
			},
			[]string{"channel", "result"},
		),
		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notifycar_delivery_duration_seconds",
				Help:    "Duration of outbound delivery calls.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"channel"},
		),
		DeliveryQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notifycar_delivery_queue_depth",
				Help: "Jobs waiting in the delivery queue.",
			},
		),
	}

	reg.MustRegister(
		m.NotificationsTotal,
		m.NotificationsRateLimited,
		m.DeliveriesTotal,
		m.DeliveryDuration,
		m.DeliveryQueueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
