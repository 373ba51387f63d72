package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/ringstream/metric"
)

// bufferMetrics exports buffer activity to Prometheus.
type bufferMetrics struct {
	appends    prometheus.Counter
	removes    prometheus.Counter
	peeks      prometheus.Counter
	overruns   prometheus.Counter
	underruns  prometheus.Counter
	highWaters prometheus.Counter
	lowWaters  prometheus.Counter

	count       prometheus.Gauge
	utilization prometheus.Gauge
}

func newBufferCounter(name, help, buffer string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "ringstream",
		Subsystem:   "buffer",
		Name:        name,
		ConstLabels: prometheus.Labels{"buffer": buffer},
		Help:        help,
	})
}

func newBufferGauge(name, help, buffer string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "ringstream",
		Subsystem:   "buffer",
		Name:        name,
		ConstLabels: prometheus.Labels{"buffer": buffer},
		Help:        help,
	})
}

// newBufferMetrics creates and registers buffer metrics under the service
// name of the buffer. On failure the metrics registered so far are removed.
func newBufferMetrics(registry *metric.MetricsRegistry, name string) (*bufferMetrics, error) {
	m := &bufferMetrics{
		appends:     newBufferCounter("appends_total", "Total number of successful appends", name),
		removes:     newBufferCounter("removes_total", "Total number of elements removed", name),
		peeks:       newBufferCounter("peeks_total", "Total number of successful peeks", name),
		overruns:    newBufferCounter("overruns_total", "Total number of elements evicted by appends to a full buffer", name),
		underruns:   newBufferCounter("underruns_total", "Total number of reads from an empty buffer", name),
		highWaters:  newBufferCounter("high_water_total", "Total number of high-water crossings", name),
		lowWaters:   newBufferCounter("low_water_total", "Total number of low-water crossings", name),
		count:       newBufferGauge("count", "Current number of elements held", name),
		utilization: newBufferGauge("utilization", "Buffer utilization as a fraction (0.0 to 1.0)", name),
	}

	collectors := []struct {
		name string
		c    prometheus.Counter
		g    prometheus.Gauge
	}{
		{name: "buffer_appends", c: m.appends},
		{name: "buffer_removes", c: m.removes},
		{name: "buffer_peeks", c: m.peeks},
		{name: "buffer_overruns", c: m.overruns},
		{name: "buffer_underruns", c: m.underruns},
		{name: "buffer_high_water", c: m.highWaters},
		{name: "buffer_low_water", c: m.lowWaters},
		{name: "buffer_count", g: m.count},
		{name: "buffer_utilization", g: m.utilization},
	}

	registered := make([]string, 0, len(collectors))
	for _, col := range collectors {
		var err error
		if col.c != nil {
			err = registry.RegisterCounter(name, col.name, col.c)
		} else {
			err = registry.RegisterGauge(name, col.name, col.g)
		}
		if err != nil {
			for _, done := range registered {
				registry.Unregister(name, done)
			}
			return nil, err
		}
		registered = append(registered, col.name)
	}

	return m, nil
}

func (m *bufferMetrics) recordAppend() { m.appends.Inc() }
func (m *bufferMetrics) recordRemove(n int) { m.removes.Add(float64(n)) }
func (m *bufferMetrics) recordPeek() { m.peeks.Inc() }
func (m *bufferMetrics) recordOverrun() { m.overruns.Inc() }
func (m *bufferMetrics) recordUnderrun() { m.underruns.Inc() }
func (m *bufferMetrics) recordHighWater() { m.highWaters.Inc() }
func (m *bufferMetrics) recordLowWater() { m.lowWaters.Inc() }

// observe sets the count and utilization gauges.
func (m *bufferMetrics) observe(count, capacity int) {
	m.count.Set(float64(count))
	m.utilization.Set(float64(count) / float64(capacity))
}
