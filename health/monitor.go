package health

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Checker reports the current health of one component. Checkers are called
// on every Check and must be cheap and safe for concurrent use.
type Checker func() Status

// Monitor runs registered checkers on demand.
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]Checker
	now    func() time.Time
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{
		checks: make(map[string]Checker),
		now:    time.Now,
	}
}

// Register adds or replaces the checker for name.
func (m *Monitor) Register(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Remove stops checking name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, name)
}

// Components returns the registered names in sorted order.
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Check runs the checker for name.
func (m *Monitor) Check(name string) (Status, bool) {
	m.mu.RLock()
	check, ok := m.checks[name]
	m.mu.RUnlock()
	if !ok {
		return Status{}, false
	}
	return m.run(name, check), true
}

// Aggregate runs every checker and combines the results under system.
func (m *Monitor) Aggregate(system string) Status {
	names := m.Components()
	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		if status, ok := m.Check(name); ok {
			statuses = append(statuses, status)
		}
	}

	status := Aggregate(system, statuses)
	status.Timestamp = m.now()
	return status
}

func (m *Monitor) run(name string, check Checker) Status {
	status := check()
	status.Component = name
	if status.State == "" {
		status.State = StateUnhealthy
	}
	if status.Timestamp.IsZero() {
		status.Timestamp = m.now()
	}
	return status
}

// Handler serves the aggregated status as JSON. Unhealthy systems answer
// 503 so load balancers and orchestrators can act on the status code.
func (m *Monitor) Handler(system string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := m.Aggregate(system)
		code := http.StatusOK
		if status.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
