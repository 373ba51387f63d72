package natssink

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360/ringstream/errors"
	"github.com/c360/ringstream/health"
	"github.com/c360/ringstream/metric"
	"github.com/c360/ringstream/pkg/retry"
	"github.com/c360/ringstream/pkg/tlsutil"
)

// Config holds connection and publishing settings for the NATS sink.
type Config struct {
	URL           string        `json:"url"            yaml:"url"`
	Subject       string        `json:"subject"        yaml:"subject"`
	Source        string        `json:"source"         yaml:"source"`
	ClientName    string        `json:"client_name"    yaml:"client_name"`
	MaxReconnects int           `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	Timeout       time.Duration `json:"timeout"        yaml:"timeout"`

	TLS tlsutil.ClientConfig `json:"tls" yaml:"tls"`
}

// DefaultConfig returns settings for a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "ringstream.samples",
		Source:        "ringstream",
		ClientName:    "ringstream",
		MaxReconnects: 60,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "url is required")
	}
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "subject is required")
	}
	if c.MaxReconnects < -1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_reconnects must be -1 (unlimited) or greater")
	}
	if c.ReconnectWait < 0 || c.Timeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"reconnect_wait cannot be negative and timeout must be positive")
	}
	return c.TLS.Validate()
}

// Envelope is the JSON document published for each batch.
type Envelope[T any] struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	SentAt time.Time `json:"sent_at"`
	Count  int       `json:"count"`
	Items  []T       `json:"items"`
}

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

type options struct {
	logger  *slog.Logger
	metrics *metric.Metrics
	connect retry.Config
}

// Option configures a Sink.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics reports connection state and errors to the registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		if registry != nil {
			o.metrics = registry.CoreMetrics()
		}
	}
}

// WithConnectRetry overrides the retry policy used by Connect.
func WithConnectRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.connect = cfg
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		connect: retry.Quick(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Sink publishes batches as JSON envelopes on a NATS subject.
type Sink[T any] struct {
	cfg     Config
	pub     Publisher
	conn    *nats.Conn // set when the sink owns the connection
	logger  *slog.Logger
	metrics *metric.Metrics

	now   func() time.Time
	newID func() string

	closeOnce sync.Once
}

// New creates a sink on an existing publisher. The caller keeps ownership
// of the connection.
func New[T any](pub Publisher, cfg Config, opts ...Option) (*Sink[T], error) {
	if pub == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Sink", "New", "publisher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Sink", "New", "config validation")
	}

	o := applyOptions(opts)
	return &Sink[T]{
		cfg:     cfg,
		pub:     pub,
		logger:  o.logger.With("component", "nats-sink", "subject", cfg.Subject),
		metrics: o.metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Connect dials NATS, retrying transient failures, and returns a sink that
// owns the connection. Close releases it.
func Connect[T any](ctx context.Context, cfg Config, opts ...Option) (*Sink[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Sink", "Connect", "config validation")
	}

	o := applyOptions(opts)
	logger := o.logger.With("component", "nats-sink", "subject", cfg.Subject)

	retryCfg := o.connect
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("NATS connect failed, retrying",
			"url", cfg.URL, "attempt", attempt, "delay", delay, "error", err)
	}

	natsOpts := connectionOptions(cfg, logger, o.metrics)
	tlsConfig, err := tlsutil.LoadClientConfig(cfg.TLS)
	if err != nil {
		return nil, errors.Wrap(err, "Sink", "Connect", "load TLS config")
	}
	if tlsConfig != nil {
		natsOpts = append(natsOpts, nats.Secure(tlsConfig))
	}

	conn, err := retry.DoWithResult(ctx, retryCfg, func() (*nats.Conn, error) {
		nc, err := nats.Connect(cfg.URL, natsOpts...)
		if err != nil {
			return nil, errors.WrapTransient(err, "Sink", "Connect", "establish connection")
		}
		return nc, nil
	})
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordNATSStatus(false)
			o.metrics.RecordError("nats-sink", errors.Classify(err).String())
		}
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.RecordNATSStatus(true)
	}
	logger.Info("connected to NATS", "url", conn.ConnectedUrlRedacted())

	s, err := New[T](conn, cfg, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func connectionOptions(cfg Config, logger *slog.Logger, metrics *metric.Metrics) []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if metrics != nil {
				metrics.RecordNATSStatus(false)
			}
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if metrics != nil {
				metrics.RecordNATSStatus(true)
				metrics.RecordNATSReconnect()
			}
			logger.Info("NATS reconnected", "url", nc.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			if metrics != nil {
				metrics.RecordNATSStatus(false)
			}
			logger.Debug("NATS connection closed")
		}),
	}
	if cfg.ClientName != "" {
		opts = append(opts, nats.Name(cfg.ClientName))
	}
	return opts
}

// Write publishes batch as one envelope and flushes it to the server.
// Encoding failures are Invalid, a closed connection is Fatal, and
// everything else is Transient.
func (s *Sink[T]) Write(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}

	data, err := json.Marshal(Envelope[T]{
		ID:     s.newID(),
		Source: s.cfg.Source,
		SentAt: s.now().UTC(),
		Count:  len(batch),
		Items:  batch,
	})
	if err != nil {
		return s.record(errors.WrapInvalid(stderrors.Join(errors.ErrEncodeFailed, err),
			"Sink", "Write", "encode envelope"))
	}

	if err := s.pub.Publish(s.cfg.Subject, data); err != nil {
		return s.record(classifyPublish(err, "publish envelope"))
	}

	// FlushWithContext rejects contexts without a deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if err := s.pub.FlushWithContext(ctx); err != nil {
		return s.record(classifyPublish(err, "flush"))
	}

	s.logger.Debug("batch published", "items", len(batch), "bytes", len(data))
	return nil
}

func classifyPublish(err error, action string) error {
	switch {
	case stderrors.Is(err, nats.ErrConnectionClosed), stderrors.Is(err, nats.ErrBadSubject):
		return errors.WrapFatal(stderrors.Join(errors.ErrNotConnected, err), "Sink", "Write", action)
	case stderrors.Is(err, nats.ErrMaxPayload):
		return errors.WrapInvalid(stderrors.Join(errors.ErrInvalidData, err), "Sink", "Write", action)
	default:
		return errors.WrapTransient(stderrors.Join(errors.ErrPublishFailed, err), "Sink", "Write", action)
	}
}

func (s *Sink[T]) record(err error) error {
	if s.metrics != nil {
		s.metrics.RecordError("nats-sink", errors.Classify(err).String())
	}
	return err
}

// Health reports the state of the owned connection. A sink on a caller's
// publisher is always healthy; the caller watches its own connection.
func (s *Sink[T]) Health() health.Status {
	if s.conn == nil {
		return health.NewHealthy("nats-sink", "external publisher")
	}
	switch status := s.conn.Status(); status {
	case nats.CONNECTED:
		return health.NewHealthy("nats-sink", "connected").
			WithDetail("server", s.conn.ConnectedServerId())
	case nats.RECONNECTING, nats.CONNECTING:
		return health.NewDegraded("nats-sink", strings.ToLower(status.String())).
			WithDetail("reconnects", s.conn.Stats().Reconnects)
	default:
		return health.NewUnhealthy("nats-sink", strings.ToLower(status.String()))
	}
}

// Close flushes and closes the connection if the sink owns it.
func (s *Sink[T]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.conn == nil {
			return
		}
		if ferr := s.conn.FlushTimeout(s.cfg.Timeout); ferr != nil && !stderrors.Is(ferr, nats.ErrConnectionClosed) {
			err = errors.WrapTransient(ferr, "Sink", "Close", "final flush")
		}
		s.conn.Close()
		s.logger.Info("NATS sink closed")
	})
	return err
}
