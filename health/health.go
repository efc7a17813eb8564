// Package health aggregates health checks over publishers, subscriptions and
// broker connectivity and serves them over HTTP.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Error     string                 `json:"error,omitempty"`
	Optional  bool                   `json:"optional,omitempty"`
}

// Report is the combined result of a registry run
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	// Failing names the checks that were not healthy, sorted
	Failing  []string               `json:"failing,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// CheckerFunc is a function adapter for Checker
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func NewCheckerFunc(name string, fn func(ctx context.Context) CheckResult) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (c *CheckerFunc) Check(ctx context.Context) CheckResult {
	return c.fn(ctx)
}

func (c *CheckerFunc) Name() string {
	return c.name
}

type entry struct {
	checker  Checker
	optional bool
}

// RegisterOption configures a registered checker
type RegisterOption func(*entry)

// Optional marks a checker whose failure only degrades the overall status,
// e.g. a tail subscription the service can live without
func Optional() RegisterOption {
	return func(e *entry) {
		e.optional = true
	}
}

// Registry runs the health checks of one service
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]entry
	metadata map[string]interface{}
}

// NewRegistry creates a new health check registry
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]entry),
		metadata: make(map[string]interface{}),
	}
}

// Register adds a checker, replacing any checker with the same name
func (r *Registry) Register(checker Checker, opts ...RegisterOption) {
	e := entry{checker: checker}
	for _, opt := range opts {
		opt(&e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[checker.Name()] = e
}

// Unregister removes a health checker
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// SetMetadata sets a value reported with every run, such as the service name
func (r *Registry) SetMetadata(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[key] = value
}

// Check runs every registered checker
func (r *Registry) Check(ctx context.Context) Report {
	return r.CheckOnly(ctx)
}

// CheckOnly runs the named checkers concurrently, or all of them when no
// name is given. Unknown names are ignored. Checkers still running when ctx
// ends are reported unhealthy and their late results dropped.
func (r *Registry) CheckOnly(ctx context.Context, names ...string) Report {
	start := time.Now()
	entries, metadata := r.snapshot(names)

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(entries))
		settled bool
		g       errgroup.Group
	)
	for name, e := range entries {
		name, e := name, e
		g.Go(func() error {
			began := time.Now()
			result := e.checker.Check(ctx)
			if result.Name == "" {
				result.Name = name
			}
			if result.Timestamp.IsZero() {
				result.Timestamp = began
			}
			if result.Duration == 0 {
				result.Duration = time.Since(began)
			}
			result.Optional = e.optional

			mu.Lock()
			defer mu.Unlock()
			if !settled {
				results[name] = result
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	settled = true
	for name, e := range entries {
		if _, ok := results[name]; !ok {
			results[name] = CheckResult{
				Name:      name,
				Status:    StatusUnhealthy,
				Message:   "check did not finish",
				Duration:  time.Since(start),
				Timestamp: start,
				Error:     ctx.Err().Error(),
				Optional:  e.optional,
			}
		}
	}
	mu.Unlock()

	report := Report{
		Status:    StatusHealthy,
		Timestamp: start,
		Checks:    results,
		Metadata:  metadata,
	}
	for name, result := range results {
		status := result.Status
		if result.Optional && status == StatusUnhealthy {
			status = StatusDegraded
		}
		if status.rank() > report.Status.rank() {
			report.Status = status
		}
		if result.Status != StatusHealthy {
			report.Failing = append(report.Failing, name)
		}
	}
	sort.Strings(report.Failing)
	report.Duration = time.Since(start)
	return report
}

func (r *Registry) snapshot(names []string) (map[string]entry, map[string]interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make(map[string]entry, len(r.entries))
	if len(names) == 0 {
		for name, e := range r.entries {
			entries[name] = e
		}
	}
	for _, name := range names {
		if e, ok := r.entries[name]; ok {
			entries[name] = e
		}
	}

	metadata := make(map[string]interface{}, len(r.metadata))
	for k, v := range r.metadata {
		metadata[k] = v
	}
	return entries, metadata
}

// Handler serves a registry run as JSON. A "check" query parameter with
// comma separated names limits the run to those checkers.
type Handler struct {
	registry *Registry
	timeout  time.Duration
}

// NewHandler creates a new health check HTTP handler
func NewHandler(registry *Registry, timeout time.Duration) *Handler {
	return &Handler{registry: registry, timeout: timeout}
}

// ServeHTTP implements http.Handler. Degraded reports 200, unhealthy 503.
// HEAD requests get the status code only.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var names []string
	if q := r.URL.Query().Get("check"); q != "" {
		names = strings.Split(q, ",")
	}
	report := h.registry.CheckOnly(ctx, names...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(report.Status))
	if r.Method == http.MethodHead {
		return
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(report)
}

func statusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// ReadinessHandler answers "ready" unless the service is unhealthy, in which
// case the unhealthy required checks are listed
func ReadinessHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report := registry.Check(ctx)
		if report.Status != StatusUnhealthy {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}

		var blocking []string
		for _, name := range report.Failing {
			if c := report.Checks[name]; !c.Optional && c.Status == StatusUnhealthy {
				blocking = append(blocking, name)
			}
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready: " + strings.Join(blocking, ", ")))
	}
}

// LivenessHandler always reports "alive"
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("alive"))
	}
}
