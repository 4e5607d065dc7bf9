// Package health evaluates availability of the configured TTS backends.
//
// Checks power `outloud status` and, when the debug metrics listener is
// enabled, a /readyz endpoint. Each check wraps a provider's Probe with a
// bounded timeout so one hung backend cannot stall the whole report.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout is the maximum time a single check may take before its
// context is cancelled.
const checkTimeout = 10 * time.Second

// Checker is a named availability check. Check returns nil when the backend
// is ready to speak.
type Checker struct {
	// Name is the provider name as it appears in configuration.
	Name string

	// Check probes the backend. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Report holds one check outcome per backend name.
type Report map[string]error

// Ready reports whether every check passed.
func (r Report) Ready() bool {
	for _, err := range r {
		if err != nil {
			return false
		}
	}
	return true
}

// Names returns the checked backend names, sorted.
func (r Report) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run evaluates all checkers concurrently and returns their outcomes. Check
// failures land in the report, not in an error return.
func Run(ctx context.Context, checkers []Checker) Report {
	var (
		mu     sync.Mutex
		report = make(Report, len(checkers))
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			err := c.Check(checkCtx)
			cancel()

			mu.Lock()
			report[c.Name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// result is the JSON response body for the readiness endpoint.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves a /readyz-style endpoint over the given checkers.
type Handler struct {
	checkers []Checker
}

// NewHandler creates a [Handler] that evaluates the given checkers on each
// request.
func NewHandler(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Readyz returns 200 only when every registered backend passes its probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	report := Run(r.Context(), h.checkers)

	checks := make(map[string]string, len(report))
	for name, err := range report {
		if err != nil {
			checks[name] = "fail: " + err.Error()
		} else {
			checks[name] = "ok"
		}
	}

	status, code := "ok", http.StatusOK
	if !report.Ready() {
		status, code = "fail", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(result{Status: status, Checks: checks})
}
