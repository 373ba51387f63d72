// Package main runs ringstream: simulated sensors feed a ring buffer that a
// pump drains in batches to a log, file or NATS sink, with Prometheus metrics.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360/ringstream/config"
	"github.com/c360/ringstream/errors"
	"github.com/c360/ringstream/health"
	"github.com/c360/ringstream/metric"
	"github.com/c360/ringstream/output/file"
	"github.com/c360/ringstream/output/natssink"
	"github.com/c360/ringstream/pkg/buffer"
	"github.com/c360/ringstream/pump"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ringstream"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

// run executes the application until ctx is cancelled.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	cliCfg, err := parseFlags(args, stdout)
	if stderrors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat, stdout)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.PrintConfig {
		_, _ = fmt.Fprintln(stdout, cfg.String())
		return nil
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	logger = logger.With("run_id", uuid.NewString())
	logger.Info("Starting ringstream",
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"sink", cfg.Sink.Type,
		"capacity", cfg.Buffer.Capacity)

	return runPipeline(ctx, cfg, logger, cliCfg.ShutdownTimeout)
}

// loadConfig loads and validates configuration. An empty path uses defaults
// plus environment overrides.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.AddLayer(path)
	}
	loader.EnableValidation(true)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// runPipeline wires source, buffer, pump and sink and runs them until ctx
// ends or one of them fails.
func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	registry := metric.NewMetricsRegistry()

	rb, err := newBuffer(cfg.Buffer, registry, logger)
	if err != nil {
		return err
	}

	sink, closeSink, err := newSink(ctx, cfg.Sink, registry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.Warn("Sink close failed", "error", err)
		}
	}()

	p, err := pump.New[Sample](rb, sink, cfg.Pump.ToPump(),
		pump.WithLogger[Sample](logger),
		pump.WithMetrics[Sample](registry),
	)
	if err != nil {
		return err
	}

	source := newSensorSource(rb, cfg.Source, logger)

	monitor := health.NewMonitor()
	monitor.Register("buffer", bufferHealth(rb))
	monitor.Register("pump", pumpHealth(p))
	if hs, ok := sink.(interface{ Health() health.Status }); ok {
		monitor.Register("sink", hs.Health)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return source.Run(gctx) })
	g.Go(func() error { return p.Run(gctx) })

	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		server.Handle("/health", monitor.Handler(appName))
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			return server.Stop()
		})
		logger.Info("Metrics server listening", "address", server.Address())
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	<-gctx.Done()
	logger.Info("Shutting down", "timeout", shutdownTimeout)

	select {
	case err = <-done:
	case <-time.After(shutdownTimeout):
		return errors.WrapTransient(errors.ErrShuttingDown, "main", "runPipeline", "wait for components")
	}

	logger.Info("ringstream stopped",
		"buffer", rb.Stats().Summary(),
		"pump", p.Stats(),
		"remaining", rb.Count())
	return err
}

// newBuffer creates the sample buffer and logs watermark crossings.
func newBuffer(cfg config.BufferConfig, registry *metric.MetricsRegistry, logger *slog.Logger) (*buffer.RingBuffer[Sample], error) {
	opts := config.BufferOptions[Sample](cfg)
	opts = append(opts,
		buffer.WithLogger[Sample](logger),
		buffer.WithMetrics[Sample](registry, cfg.Name),
		buffer.WithHandler[Sample](buffer.EventHighWater, func(ev buffer.Event[Sample]) {
			logger.Warn("Buffer above high water level",
				"buffer", cfg.Name, "count", ev.Count, "capacity", ev.Capacity)
		}),
		buffer.WithHandler[Sample](buffer.EventLowWater, func(ev buffer.Event[Sample]) {
			logger.Info("Buffer at or below low water level",
				"buffer", cfg.Name, "count", ev.Count, "capacity", ev.Capacity)
		}),
	)

	rb, err := buffer.New[Sample](cfg.Capacity, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "main", "newBuffer", "create buffer")
	}
	return rb, nil
}

// newSink builds the configured sink and a function that releases it.
func newSink(
	ctx context.Context,
	cfg config.SinkConfig,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (pump.Sink[Sample], func() error, error) {
	switch cfg.Type {
	case config.SinkTypeNATS:
		s, err := natssink.Connect[Sample](ctx, cfg.NATS,
			natssink.WithLogger(logger),
			natssink.WithMetrics(registry),
		)
		if err != nil {
			return nil, nil, errors.Wrap(err, "main", "newSink", "connect NATS sink")
		}
		return s, s.Close, nil
	case config.SinkTypeFile:
		s, err := file.Open[Sample](cfg.File, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "main", "newSink", "open file sink")
		}
		return s, s.Close, nil
	default:
		return pump.NewLogSink[Sample](logger), func() error { return nil }, nil
	}
}
