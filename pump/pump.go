package pump

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/ringstream/errors"
	"github.com/c360/ringstream/metric"
	"github.com/c360/ringstream/pkg/retry"
)

// Source is the consumer side of a ring buffer. *buffer.RingBuffer satisfies it.
type Source[T any] interface {
	WaitForAppendContext(ctx context.Context) bool
	MoveItemsTo(dst []T, index, count int) int
	Count() int
}

// Config controls batching and delivery.
type Config struct {
	Name          string        // label for logs and metrics
	BatchSize     int           // maximum elements per Sink.Write
	FlushInterval time.Duration // longest time a partial batch waits
	DrainTimeout  time.Duration // budget for the final drain on shutdown
	Retry         retry.Config  // per-batch retry policy
}

// DefaultConfig returns a config suited to moderate sensor rates.
func DefaultConfig() Config {
	return Config{
		Name:          "pump",
		BatchSize:     64,
		FlushInterval: time.Second,
		DrainTimeout:  5 * time.Second,
		Retry:         retry.DefaultConfig(),
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "name is required")
	}
	if c.BatchSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "batch_size must be positive")
	}
	if c.FlushInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "flush_interval must be positive")
	}
	if c.DrainTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "drain_timeout cannot be negative")
	}
	return c.Retry.Validate()
}

// Pump moves batches from a Source to a Sink until stopped.
type Pump[T any] struct {
	cfg     Config
	source  Source[T]
	sink    Sink[T]
	logger  *slog.Logger
	metrics *metric.Metrics

	// Lifecycle management
	lifecycleMu sync.Mutex
	started     bool // owned by Start or Run
	cancel      context.CancelFunc
	done        chan struct{}
	active      atomic.Bool // loop is running; cleared by the loop on exit

	// Statistics (atomic)
	batches  atomic.Int64
	items    atomic.Int64
	failures atomic.Int64
	dropped  atomic.Int64
}

// Option configures a Pump.
type Option[T any] func(*Pump[T])

// WithLogger sets the logger for delivery failures and lifecycle events.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(p *Pump[T]) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records pump status and batch outcomes in the registry's core metrics.
func WithMetrics[T any](registry *metric.MetricsRegistry) Option[T] {
	return func(p *Pump[T]) {
		if registry != nil {
			p.metrics = registry.CoreMetrics()
		}
	}
}

// New creates a pump. It does not start moving data until Start or Run.
func New[T any](source Source[T], sink Sink[T], cfg Config, opts ...Option[T]) (*Pump[T], error) {
	if source == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Pump", "New", "source is required")
	}
	if sink == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Pump", "New", "sink is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Pump", "New", "config validation")
	}

	p := &Pump[T]{
		cfg:    cfg,
		source: source,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pump", "pump", cfg.Name)

	return p, nil
}

// Start runs the pump in a background goroutine until Stop or ctx ends.
// A pump whose ctx has ended may be started again without calling Stop.
func (p *Pump[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		select {
		case <-p.done:
			p.cancel()
		default:
			return errors.WrapInvalid(errors.ErrAlreadyStarted, "Pump", "Start", "pump already running")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.started = true
	p.active.Store(true)

	go func() {
		defer close(done)
		defer p.active.Store(false)
		p.loop(runCtx)
	}()

	return nil
}

// Stop cancels a pump started with Start and waits up to timeout for the
// final drain to finish. The lifecycle lock is not held while waiting.
func (p *Pump[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.cancel == nil {
		p.lifecycleMu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Pump", "Stop", "pump not started with Start")
	}
	cancel, done := p.cancel, p.done
	p.lifecycleMu.Unlock()

	cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		return errors.WrapTransient(errors.ErrShuttingDown, "Pump", "Stop",
			"wait for final drain")
	}

	p.lifecycleMu.Lock()
	if p.done == done {
		p.started = false
		p.cancel = nil
	}
	p.lifecycleMu.Unlock()
	return nil
}

// Run moves data until ctx ends, then drains what is left and returns.
// It is the blocking form of Start for use with errgroup.
func (p *Pump[T]) Run(ctx context.Context) error {
	p.lifecycleMu.Lock()
	if p.started {
		p.lifecycleMu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Pump", "Run", "pump already running")
	}
	p.started = true
	p.cancel = nil
	p.done = nil
	p.active.Store(true)
	p.lifecycleMu.Unlock()

	p.loop(ctx)
	p.active.Store(false)

	p.lifecycleMu.Lock()
	p.started = false
	p.lifecycleMu.Unlock()
	return nil
}

// Running reports whether the pump loop is moving or draining data. It
// turns false as soon as the loop exits, including when the context passed
// to Start ends.
func (p *Pump[T]) Running() bool {
	return p.active.Load()
}

func (p *Pump[T]) loop(ctx context.Context) {
	p.logger.Info("pump started",
		"batch_size", p.cfg.BatchSize, "flush_interval", p.cfg.FlushInterval)
	if p.metrics != nil {
		p.metrics.RecordPumpStatus(p.cfg.Name, 1)
	}

	batch := make([]T, p.cfg.BatchSize)
	var carry []T // batch interrupted by shutdown, retried during drain
	for ctx.Err() == nil {
		p.fill(ctx)
		if ctx.Err() != nil {
			break
		}
		n := p.source.MoveItemsTo(batch, 0, len(batch))
		if n == 0 {
			continue
		}
		if err := p.deliver(ctx, batch[:n]); err != nil {
			if ctx.Err() != nil {
				carry = slices.Clone(batch[:n])
				break
			}
			p.fail(batch[:n], err)
		}
	}

	p.drain(ctx, batch, carry)

	if p.metrics != nil {
		p.metrics.RecordPumpStatus(p.cfg.Name, 0)
	}
	p.logger.Info("pump stopped",
		"batches", p.batches.Load(), "items", p.items.Load(), "dropped", p.dropped.Load())
}

// fill waits until a full batch is buffered, the flush interval passes,
// or ctx ends.
func (p *Pump[T]) fill(ctx context.Context) {
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.FlushInterval)
	defer cancel()

	for p.source.Count() < p.cfg.BatchSize {
		if !p.source.WaitForAppendContext(waitCtx) {
			return
		}
	}
}

// drain delivers carry and everything still buffered after shutdown,
// bounded by DrainTimeout. A zero DrainTimeout drops them.
func (p *Pump[T]) drain(parent context.Context, batch, carry []T) {
	if p.cfg.DrainTimeout == 0 {
		if len(carry) > 0 {
			p.fail(carry, parent.Err())
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.cfg.DrainTimeout)
	defer cancel()

	if len(carry) > 0 {
		if err := p.deliver(ctx, carry); err != nil {
			p.fail(carry, err)
		}
	}

	for ctx.Err() == nil {
		n := p.source.MoveItemsTo(batch, 0, len(batch))
		if n == 0 {
			break
		}
		if err := p.deliver(ctx, batch[:n]); err != nil {
			p.fail(batch[:n], err)
		}
	}

	if remaining := p.source.Count(); remaining > 0 {
		p.logger.Warn("drain incomplete, elements left in buffer", "remaining", remaining)
	}
}

// deliver writes batch to the sink under the retry policy. Successful
// deliveries are counted here; failures are left to the caller.
func (p *Pump[T]) deliver(ctx context.Context, batch []T) error {
	cfg := p.cfg.Retry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		p.logger.Warn("sink write failed, retrying",
			"attempt", attempt, "delay", delay, "items", len(batch), "error", err)
	}

	start := time.Now()
	err := retry.Do(ctx, cfg, func() error {
		return p.sink.Write(ctx, batch)
	})
	if err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordBatch(p.cfg.Name, len(batch), time.Since(start), nil)
	}
	p.batches.Add(1)
	p.items.Add(int64(len(batch)))
	return nil
}

// fail accounts for a batch that will not be delivered.
func (p *Pump[T]) fail(batch []T, err error) {
	p.failures.Add(1)
	p.dropped.Add(int64(len(batch)))

	class := errors.Classify(err)
	if p.metrics != nil {
		p.metrics.RecordBatch(p.cfg.Name, len(batch), 0, err)
		p.metrics.RecordError("pump", class.String())
	}
	p.logger.Error("batch dropped after delivery failure",
		"items", len(batch), "class", class.String(), "error", err)
}

// Stats is a snapshot of pump counters.
type Stats struct {
	Running  bool  `json:"running"`
	Batches  int64 `json:"batches"`
	Items    int64 `json:"items"`
	Failures int64 `json:"failures"`
	Dropped  int64 `json:"dropped"`
}

// Stats returns current pump statistics
func (p *Pump[T]) Stats() Stats {
	return Stats{
		Running:  p.Running(),
		Batches:  p.batches.Load(),
		Items:    p.items.Load(),
		Failures: p.failures.Load(),
		Dropped:  p.dropped.Load(),
	}
}
