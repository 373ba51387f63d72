package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains module-level metrics shared by pumps and sinks.
// Per-buffer metrics are registered separately by the buffer package.
type Metrics struct {
	// Pump metrics
	PumpStatus       *prometheus.GaugeVec
	BatchesDelivered *prometheus.CounterVec
	ItemsDelivered   *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		PumpStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ringstream",
				Subsystem: "pump",
				Name:      "status",
				Help:      "Pump status (0=stopped, 1=running, 2=draining)",
			},
			[]string{"pump"},
		),

		BatchesDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ringstream",
				Subsystem: "pump",
				Name:      "batches_total",
				Help:      "Total number of batches handed to a sink",
			},
			[]string{"pump", "status"},
		),

		ItemsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ringstream",
				Subsystem: "pump",
				Name:      "items_total",
				Help:      "Total number of items delivered to a sink",
			},
			[]string{"pump"},
		),

		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ringstream",
				Subsystem: "pump",
				Name:      "delivery_duration_seconds",
				Help:      "Time spent delivering one batch, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pump"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ringstream",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ringstream",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ringstream",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.PumpStatus,
		c.BatchesDelivered,
		c.ItemsDelivered,
		c.DeliveryDuration,
		c.ErrorsTotal,
		c.NATSConnected,
		c.NATSReconnects,
	}
}

// RecordPumpStatus updates the pump status gauge
func (c *Metrics) RecordPumpStatus(pump string, status int) {
	c.PumpStatus.WithLabelValues(pump).Set(float64(status))
}

// RecordBatch records one delivered (or failed) batch
func (c *Metrics) RecordBatch(pump string, items int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	} else {
		c.ItemsDelivered.WithLabelValues(pump).Add(float64(items))
	}
	c.BatchesDelivered.WithLabelValues(pump, status).Inc()
	c.DeliveryDuration.WithLabelValues(pump).Observe(duration.Seconds())
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
