package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks buffer operation counters. It is always collected,
// independent of Prometheus export.
type Statistics struct {
	appends    atomic.Int64
	removes    atomic.Int64
	peeks      atomic.Int64
	overruns   atomic.Int64
	underruns  atomic.Int64
	highWaters atomic.Int64
	lowWaters  atomic.Int64
	maxCount   atomic.Int64

	mu        sync.RWMutex
	startTime time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Append records a successful append that left count elements held.
func (s *Statistics) Append(count int) {
	s.appends.Add(1)
	for {
		current := s.maxCount.Load()
		if int64(count) <= current || s.maxCount.CompareAndSwap(current, int64(count)) {
			return
		}
	}
}

// Remove records n elements taken out of the buffer.
func (s *Statistics) Remove(n int) {
	s.removes.Add(int64(n))
}

// Peek records a successful peek.
func (s *Statistics) Peek() {
	s.peeks.Add(1)
}

// Overrun records an eviction caused by appending to a full buffer.
func (s *Statistics) Overrun() {
	s.overruns.Add(1)
}

// Underrun records a read from an empty buffer.
func (s *Statistics) Underrun() {
	s.underruns.Add(1)
}

// HighWater records a high-water crossing.
func (s *Statistics) HighWater() {
	s.highWaters.Add(1)
}

// LowWater records a low-water crossing.
func (s *Statistics) LowWater() {
	s.lowWaters.Add(1)
}

// Appends returns the number of successful appends.
func (s *Statistics) Appends() int64 { return s.appends.Load() }

// Removes returns the number of elements removed.
func (s *Statistics) Removes() int64 { return s.removes.Load() }

// Peeks returns the number of successful peeks.
func (s *Statistics) Peeks() int64 { return s.peeks.Load() }

// Overruns returns the number of evictions.
func (s *Statistics) Overruns() int64 { return s.overruns.Load() }

// Underruns returns the number of reads from an empty buffer.
func (s *Statistics) Underruns() int64 { return s.underruns.Load() }

// HighWaters returns the number of high-water crossings.
func (s *Statistics) HighWaters() int64 { return s.highWaters.Load() }

// LowWaters returns the number of low-water crossings.
func (s *Statistics) LowWaters() int64 { return s.lowWaters.Load() }

// MaxCount returns the largest element count observed after an append.
func (s *Statistics) MaxCount() int64 { return s.maxCount.Load() }

// Throughput returns the average number of appends per second.
func (s *Statistics) Throughput() float64 {
	elapsed := s.Uptime()
	if elapsed <= 0 {
		return 0.0
	}
	return float64(s.Appends()) / elapsed.Seconds()
}

// OverrunRate returns the fraction of append attempts that evicted an element.
func (s *Statistics) OverrunRate() float64 {
	overruns := s.Overruns()
	// fail-fast overruns do not count as appends
	attempts := s.Appends()
	if attempts < overruns {
		attempts = overruns
	}
	if attempts == 0 {
		return 0.0
	}
	return float64(overruns) / float64(attempts)
}

// Uptime returns the time since creation or the last Reset.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Reset zeroes all counters.
func (s *Statistics) Reset() {
	s.appends.Store(0)
	s.removes.Store(0)
	s.peeks.Store(0)
	s.overruns.Store(0)
	s.underruns.Store(0)
	s.highWaters.Store(0)
	s.lowWaters.Store(0)
	s.maxCount.Store(0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
}

// StatsSummary is a point-in-time copy of all statistics.
type StatsSummary struct {
	Appends     int64         `json:"appends"`
	Removes     int64         `json:"removes"`
	Peeks       int64         `json:"peeks"`
	Overruns    int64         `json:"overruns"`
	Underruns   int64         `json:"underruns"`
	HighWaters  int64         `json:"high_waters"`
	LowWaters   int64         `json:"low_waters"`
	MaxCount    int64         `json:"max_count"`
	Throughput  float64       `json:"throughput"`
	OverrunRate float64       `json:"overrun_rate"`
	Uptime      time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Appends:     s.Appends(),
		Removes:     s.Removes(),
		Peeks:       s.Peeks(),
		Overruns:    s.Overruns(),
		Underruns:   s.Underruns(),
		HighWaters:  s.HighWaters(),
		LowWaters:   s.LowWaters(),
		MaxCount:    s.MaxCount(),
		Throughput:  s.Throughput(),
		OverrunRate: s.OverrunRate(),
		Uptime:      s.Uptime(),
	}
}
