package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/ringstream/errors"
	"github.com/c360/ringstream/output/file"
	"github.com/c360/ringstream/output/natssink"
	"github.com/c360/ringstream/pkg/buffer"
	"github.com/c360/ringstream/pkg/retry"
	"github.com/c360/ringstream/pump"
)

// Sink types
const (
	SinkTypeLog  = "log"  // Log batches through slog
	SinkTypeNATS = "nats" // Publish batches to a NATS subject
	SinkTypeFile = "file" // Append batches to a local file
)

// Config represents the complete application configuration
type Config struct {
	Buffer  BufferConfig  `json:"buffer"  yaml:"buffer"`
	Pump    PumpConfig    `json:"pump"    yaml:"pump"`
	Sink    SinkConfig    `json:"sink"    yaml:"sink"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Source  SourceConfig  `json:"source"  yaml:"source"`
}

// BufferConfig sizes the ring buffer and sets its watermarks and fault policy.
type BufferConfig struct {
	Name             string `json:"name"               yaml:"name"`
	Capacity         int    `json:"capacity"           yaml:"capacity"`
	HighWaterLevel   int    `json:"high_water_level"   yaml:"high_water_level"`   // 0 disables
	LowWaterLevel    int    `json:"low_water_level"    yaml:"low_water_level"`    // 0 disables
	ExceptOnOverrun  bool   `json:"except_on_overrun"  yaml:"except_on_overrun"`  // fail fast instead of evicting silently
	ExceptOnUnderrun bool   `json:"except_on_underrun" yaml:"except_on_underrun"` // fail fast on empty reads
}

// PumpConfig controls batching between the buffer and the sink.
type PumpConfig struct {
	Name          string        `json:"name"           yaml:"name"`
	BatchSize     int           `json:"batch_size"     yaml:"batch_size"`
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
	DrainTimeout  time.Duration `json:"drain_timeout"  yaml:"drain_timeout"`
	Retry         RetryConfig   `json:"retry"          yaml:"retry"`
}

// RetryConfig is the serializable form of retry.Config.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"  yaml:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"     yaml:"max_delay"`
	Multiplier   float64       `json:"multiplier"    yaml:"multiplier"`
	AddJitter    bool          `json:"add_jitter"    yaml:"add_jitter"`
}

// SinkConfig selects where batches go.
type SinkConfig struct {
	Type string          `json:"type" yaml:"type"`
	NATS natssink.Config `json:"nats" yaml:"nats"`
	File file.Config     `json:"file" yaml:"file"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port"    yaml:"port"`
	Path    string `json:"path"    yaml:"path"`
}

// SourceConfig drives the simulated sensor source.
type SourceConfig struct {
	Sensors int     `json:"sensors" yaml:"sensors"`
	Rate    float64 `json:"rate"    yaml:"rate"` // samples per second across all sensors
	Burst   int     `json:"burst"   yaml:"burst"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	p := pump.DefaultConfig()
	return &Config{
		Buffer: BufferConfig{
			Name:           "samples",
			Capacity:       1024,
			HighWaterLevel: 768,
			LowWaterLevel:  64,
		},
		Pump: PumpConfig{
			Name:          p.Name,
			BatchSize:     p.BatchSize,
			FlushInterval: p.FlushInterval,
			DrainTimeout:  p.DrainTimeout,
			Retry:         retryConfigFrom(p.Retry),
		},
		Sink: SinkConfig{
			Type: SinkTypeLog,
			NATS: natssink.DefaultConfig(),
			File: file.DefaultConfig(),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Source: SourceConfig{
			Sensors: 4,
			Rate:    100,
			Burst:   10,
		},
	}
}

func retryConfigFrom(c retry.Config) RetryConfig {
	return RetryConfig{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
		AddJitter:    c.AddJitter,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if err := c.Buffer.Validate(); err != nil {
		return errors.Wrap(err, "Config", "Validate", "buffer")
	}
	if err := c.Pump.ToPump().Validate(); err != nil {
		return errors.Wrap(err, "Config", "Validate", "pump")
	}
	if err := c.Sink.Validate(); err != nil {
		return errors.Wrap(err, "Config", "Validate", "sink")
	}
	if err := c.Metrics.Validate(); err != nil {
		return errors.Wrap(err, "Config", "Validate", "metrics")
	}
	if err := c.Source.Validate(); err != nil {
		return errors.Wrap(err, "Config", "Validate", "source")
	}
	return nil
}

// Validate checks the buffer section.
func (b BufferConfig) Validate() error {
	if b.Capacity <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidCapacity, "BufferConfig", "Validate", "capacity must be positive")
	}
	if b.HighWaterLevel < 0 || b.HighWaterLevel > b.Capacity {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "BufferConfig", "Validate",
			fmt.Sprintf("high_water_level %d outside [0, %d]", b.HighWaterLevel, b.Capacity))
	}
	if b.LowWaterLevel < 0 || b.LowWaterLevel > b.Capacity {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "BufferConfig", "Validate",
			fmt.Sprintf("low_water_level %d outside [0, %d]", b.LowWaterLevel, b.Capacity))
	}
	return nil
}

// BufferOptions converts b into construction options for buffer.New.
// Metrics and logging are left to the caller.
func BufferOptions[T any](b BufferConfig) []buffer.Option[T] {
	return []buffer.Option[T]{
		buffer.WithName[T](b.Name),
		buffer.WithHighWaterLevel[T](b.HighWaterLevel),
		buffer.WithLowWaterLevel[T](b.LowWaterLevel),
		buffer.WithExceptOnOverrun[T](b.ExceptOnOverrun),
		buffer.WithExceptOnUnderrun[T](b.ExceptOnUnderrun),
	}
}

// ToPump converts the section to a pump.Config.
func (p PumpConfig) ToPump() pump.Config {
	return pump.Config{
		Name:          p.Name,
		BatchSize:     p.BatchSize,
		FlushInterval: p.FlushInterval,
		DrainTimeout:  p.DrainTimeout,
		Retry: retry.Config{
			MaxAttempts:  p.Retry.MaxAttempts,
			InitialDelay: p.Retry.InitialDelay,
			MaxDelay:     p.Retry.MaxDelay,
			Multiplier:   p.Retry.Multiplier,
			AddJitter:    p.Retry.AddJitter,
		},
	}
}

// Validate checks the sink section. Only the selected sink's settings are
// checked.
func (s SinkConfig) Validate() error {
	switch s.Type {
	case SinkTypeLog:
		return nil
	case SinkTypeNATS:
		return s.NATS.Validate()
	case SinkTypeFile:
		return s.File.Validate()
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SinkConfig", "Validate",
			fmt.Sprintf("unknown sink type %q (want %q, %q or %q)", s.Type, SinkTypeLog, SinkTypeNATS, SinkTypeFile))
	}
}

// Validate checks the metrics section.
func (m MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Port <= 0 || m.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "MetricsConfig", "Validate",
			fmt.Sprintf("port %d out of range", m.Port))
	}
	if m.Path == "" || m.Path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "MetricsConfig", "Validate",
			"path must start with /")
	}
	return nil
}

// Validate checks the source section.
func (s SourceConfig) Validate() error {
	if s.Sensors <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SourceConfig", "Validate", "sensors must be positive")
	}
	if s.Rate <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SourceConfig", "Validate", "rate must be positive")
	}
	if s.Burst < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SourceConfig", "Validate", "burst must be at least 1")
	}
	return nil
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
