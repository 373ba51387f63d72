// Package config loads ringstream configuration.
//
// Configuration is built in layers: Default values, then each file added
// with AddLayer in order, then RINGSTREAM_* environment overrides. Files may
// be JSON (.json) or YAML (.yaml, .yml), and only the keys present in a file
// override earlier layers. Duration fields accept Go duration strings:
//
//	buffer:
//	  capacity: 4096
//	  high_water_level: 3072
//	  low_water_level: 256
//	pump:
//	  batch_size: 128
//	  flush_interval: 250ms
//	sink:
//	  type: nats
//	  nats:
//	    url: nats://nats:4222
//	    subject: plant.sensors
//
// The sink type is log, nats or file; only the selected sink's section is
// validated. NATS client TLS is configured under sink.nats.tls.
//
// Loading with validation:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/site.json")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//	rb, err := buffer.New[Sample](cfg.Buffer.Capacity, config.BufferOptions[Sample](cfg.Buffer)...)
//
// # Environment Overrides
//
//	RINGSTREAM_BUFFER_CAPACITY, RINGSTREAM_BUFFER_HIGH_WATER, RINGSTREAM_BUFFER_LOW_WATER,
//	RINGSTREAM_BUFFER_EXCEPT_ON_OVERRUN, RINGSTREAM_PUMP_BATCH_SIZE,
//	RINGSTREAM_PUMP_FLUSH_INTERVAL, RINGSTREAM_SINK_TYPE, RINGSTREAM_NATS_URL,
//	RINGSTREAM_NATS_SUBJECT, RINGSTREAM_FILE_DIRECTORY, RINGSTREAM_METRICS_ENABLED,
//	RINGSTREAM_METRICS_PORT, RINGSTREAM_SOURCE_RATE
//
// A value that does not parse for its field fails Load with an Invalid error.
//
// # Security
//
// Files are limited to 1MB, must be regular files, and relative paths may not
// escape the working directory. JSON nesting is capped at 32 levels.
package config
