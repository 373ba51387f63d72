// Package metric provides Prometheus-based metrics collection and an HTTP server
// for ringstream monitoring.
//
// The package offers a centralized metrics registry holding both core metrics
// (pump status, batch delivery, NATS health) and component-specific metrics such
// as the per-buffer counters registered by pkg/buffer. The Server type exposes
// the registry in Prometheus format.
//
// # Architecture
//
//  1. Core Metrics: registered automatically (Metrics type)
//  2. Component Registry: registration keyed by component and metric name (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint plus /health, extra routes via Handle (Server type)
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        slog.Error("metrics server failed", "error", err)
//	    }
//	}()
//	defer server.Stop()
//
//	rb, err := buffer.New[Sample](1024,
//	    buffer.WithMetrics[Sample](registry, "imu"),
//	)
//
// # Registration Keys
//
// Every component metric is tracked under "component.metric". Registering the same
// key twice returns an Invalid-classified error; a name clash inside Prometheus
// itself is also reported as Invalid. UnregisterService removes everything a
// component registered, which lets a component be rebuilt under the same name.
//
// # Thread Safety
//
// MetricsRegistry is safe for concurrent use. Prometheus collectors are safe for
// concurrent updates.
package metric
