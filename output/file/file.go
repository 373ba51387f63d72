package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/c360/ringstream/errors"
	"github.com/c360/ringstream/health"
)

// Output formats
const (
	FormatJSONL = "jsonl" // one JSON object per element per line
	FormatJSON  = "json"  // one indented JSON array per batch
)

// Config holds configuration for the file sink
type Config struct {
	Directory  string `json:"directory"   yaml:"directory"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix"`
	Format     string `json:"format"      yaml:"format"`
	Append     bool   `json:"append"      yaml:"append"`
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "directory is required")
	}
	if c.FilePrefix == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "file_prefix is required")
	}
	if c.Format != FormatJSONL && c.Format != FormatJSON {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"format must be one of: jsonl, json")
	}
	return nil
}

// DefaultConfig returns default configuration for the file sink
func DefaultConfig() Config {
	return Config{
		Directory:  filepath.Join(os.TempDir(), "ringstream"),
		FilePrefix: "samples",
		Format:     FormatJSONL,
		Append:     true,
	}
}

// Path returns the file the sink writes to.
func (c Config) Path() string {
	return filepath.Join(c.Directory, fmt.Sprintf("%s.%s", c.FilePrefix, c.Format))
}

// Sink writes batches to a local file.
type Sink[T any] struct {
	format string
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer

	itemsWritten atomic.Int64
	bytesWritten atomic.Int64
	errors       atomic.Int64
}

// Open creates the output directory and opens the file. A nil logger uses
// slog.Default.
func Open[T any](cfg Config, logger *slog.Logger) (*Sink[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Sink", "Open", "config validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "Sink", "Open", "create output directory")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(cfg.Path(), flags, 0o644)
	if err != nil {
		return nil, errors.WrapFatal(err, "Sink", "Open", "open output file")
	}

	s := &Sink[T]{
		format: cfg.Format,
		logger: logger.With("component", "file-sink", "path", cfg.Path()),
		file:   f,
		w:      bufio.NewWriter(f),
	}
	s.logger.Info("File sink opened", "format", cfg.Format, "append", cfg.Append)
	return s, nil
}

// Write encodes batch and flushes it to the file. An encoding failure is
// Invalid; a write failure is Transient.
func (s *Sink[T]) Write(_ context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}

	data, err := s.encode(batch)
	if err != nil {
		s.errors.Add(1)
		return errors.WrapInvalid(err, "Sink", "Write", "encode batch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return errors.WrapFatal(errors.ErrNotConnected, "Sink", "Write", "file closed")
	}

	if _, err := s.w.Write(data); err != nil {
		s.errors.Add(1)
		return errors.WrapTransient(err, "Sink", "Write", "write batch")
	}
	if err := s.w.Flush(); err != nil {
		s.errors.Add(1)
		return errors.WrapTransient(err, "Sink", "Write", "flush batch")
	}

	s.itemsWritten.Add(int64(len(batch)))
	s.bytesWritten.Add(int64(len(data)))
	s.logger.Debug("Batch written", "items", len(batch), "bytes", len(data))
	return nil
}

func (s *Sink[T]) encode(batch []T) ([]byte, error) {
	if s.format == FormatJSON {
		data, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}

	var out []byte
	for _, item := range batch {
		line, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out, nil
}

// Close flushes buffered data and closes the file. It is safe to call more
// than once.
func (s *Sink[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	s.file = nil

	if flushErr != nil {
		return errors.WrapTransient(flushErr, "Sink", "Close", "flush")
	}
	if closeErr != nil {
		return errors.WrapTransient(closeErr, "Sink", "Close", "close file")
	}

	s.logger.Info("File sink closed",
		"items_written", s.itemsWritten.Load(),
		"bytes_written", s.bytesWritten.Load(),
		"errors", s.errors.Load())
	return nil
}

// Health is unhealthy once the sink is closed and degraded after any write
// error.
func (s *Sink[T]) Health() health.Status {
	s.mu.Lock()
	closed := s.file == nil
	s.mu.Unlock()

	stats := s.Stats()
	var status health.Status
	switch {
	case closed:
		status = health.NewUnhealthy("file-sink", "closed")
	case stats.Errors > 0:
		status = health.NewDegraded("file-sink", "write errors")
	default:
		status = health.NewHealthy("file-sink", "open")
	}
	return status.WithDetail("items_written", stats.ItemsWritten).WithDetail("errors", stats.Errors)
}

// Stats is a snapshot of sink counters.
type Stats struct {
	ItemsWritten int64 `json:"items_written"`
	BytesWritten int64 `json:"bytes_written"`
	Errors       int64 `json:"errors"`
}

// Stats returns current sink statistics
func (s *Sink[T]) Stats() Stats {
	return Stats{
		ItemsWritten: s.itemsWritten.Load(),
		BytesWritten: s.bytesWritten.Load(),
		Errors:       s.errors.Load(),
	}
}
