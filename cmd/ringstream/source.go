package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/ringstream/config"
	"github.com/c360/ringstream/errors"
)

// Sample is one simulated sensor reading.
type Sample struct {
	Sensor string    `json:"sensor"`
	Seq    uint64    `json:"seq"`
	Value  float64   `json:"value"`
	At     time.Time `json:"at"`
}

// appender is the producer side of the ring buffer.
type appender interface {
	Append(item Sample) error
}

// sensorSource produces samples round-robin across a set of sensors at a
// limited rate. Each sensor follows a slow sine wave with gaussian noise.
type sensorSource struct {
	sink    appender
	limiter *rate.Limiter
	sensors []string
	logger  *slog.Logger
	now     func() time.Time

	seq      atomic.Uint64
	rejected atomic.Int64
}

func newSensorSource(sink appender, cfg config.SourceConfig, logger *slog.Logger) *sensorSource {
	sensors := make([]string, cfg.Sensors)
	for i := range sensors {
		sensors[i] = fmt.Sprintf("sensor-%02d", i+1)
	}
	return &sensorSource{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		sensors: sensors,
		logger:  logger.With("component", "source"),
		now:     time.Now,
	}
}

// Run appends samples until ctx ends. Buffer faults are counted and logged
// at debug level; other append errors stop the source.
func (s *sensorSource) Run(ctx context.Context) error {
	s.logger.Info("source started", "sensors", len(s.sensors), "rate", float64(s.limiter.Limit()))
	defer func() {
		s.logger.Info("source stopped", "produced", s.seq.Load(), "rejected", s.rejected.Load())
	}()

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "source", "Run", "wait for rate limiter")
		}

		sample := s.next()
		if err := s.sink.Append(sample); err != nil {
			if !errors.IsBufferFault(err) {
				return errors.Wrap(err, "source", "Run", "append sample")
			}
			s.rejected.Add(1)
			s.logger.Debug("sample rejected", "sensor", sample.Sensor, "seq", sample.Seq, "error", err)
		}
	}
}

func (s *sensorSource) next() Sample {
	seq := s.seq.Add(1)
	sensor := int((seq - 1) % uint64(len(s.sensors)))
	at := s.now()

	phase := float64(at.UnixMilli()%60_000) / 60_000 * 2 * math.Pi
	value := 20 + float64(sensor) + 5*math.Sin(phase+float64(sensor)) + rand.NormFloat64()*0.25

	return Sample{
		Sensor: s.sensors[sensor],
		Seq:    seq,
		Value:  math.Round(value*100) / 100,
		At:     at.UTC(),
	}
}
