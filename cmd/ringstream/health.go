package main

import (
	"github.com/c360/ringstream/health"
	"github.com/c360/ringstream/pkg/buffer"
	"github.com/c360/ringstream/pump"
)

// bufferHealth is degraded once the buffer has overrun or while it sits at
// or above its high water level.
func bufferHealth(rb *buffer.RingBuffer[Sample]) health.Checker {
	return func() health.Status {
		count := rb.Count()
		high := rb.HighWaterLevel()

		var s health.Status
		switch {
		case rb.HasOverrun():
			s = health.NewDegraded("buffer", "overrun occurred")
		case high > 0 && count >= high:
			s = health.NewDegraded("buffer", "at or above high water level")
		default:
			s = health.NewHealthy("buffer", "ok")
		}
		return s.WithDetail("count", count).WithDetail("capacity", rb.MaxElements())
	}
}

// pumpHealth is unhealthy when the pump is not running and degraded once it
// has dropped a batch.
func pumpHealth(p *pump.Pump[Sample]) health.Checker {
	return func() health.Status {
		stats := p.Stats()

		var s health.Status
		switch {
		case !stats.Running:
			s = health.NewUnhealthy("pump", "not running")
		case stats.Dropped > 0:
			s = health.NewDegraded("pump", "batches dropped")
		default:
			s = health.NewHealthy("pump", "running")
		}
		return s.WithDetail("items", stats.Items).WithDetail("dropped", stats.Dropped)
	}
}
