// Package health provides the liveness and readiness endpoints of the
// diagnostics server.
//
//   - /healthz always returns 200 OK while the process can serve HTTP.
//   - /readyz returns 200 only when every registered [Checker] passes.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map holding the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/gazevoice/internal/resilience"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when the component
// is ready.
type Checker struct {
	// Name is the key of the check in the JSON response.
	Name string

	// Check probes the component. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// ErrNotLoaded is reported by [SpeechLoaded] when no transcription backend
// could be loaded at startup.
var ErrNotLoaded = errors.New("speech backend not loaded")

// SpeechLoaded returns a checker that fails while the session has no usable
// backend.
func SpeechLoaded(s interface{ Loaded() bool }) Checker {
	return Checker{
		Name: "speech",
		Check: func(context.Context) error {
			if !s.Loaded() {
				return ErrNotLoaded
			}
			return nil
		},
	}
}

// Backends returns a checker that fails when the circuit of every backend
// in fb is open, that is when no stream could currently be opened.
func Backends(fb *resilience.BackendFallback) Checker {
	return Checker{
		Name: "backends",
		Check: func(context.Context) error {
			names := fb.Names()
			for _, name := range names {
				if cb, ok := fb.Breaker(name); ok && cb.State() != resilience.StateOpen {
					return nil
				}
			}
			return fmt.Errorf("all %d circuits open", len(names))
		},
	}
}

// Publisher returns a checker that fails while the action publisher has no
// broker connection.
func Publisher(p interface{ Connected() bool }) Checker {
	return Checker{
		Name: "publisher",
		Check: func(context.Context) error {
			if !p.Connected() {
				return errors.New("broker not connected")
			}
			return nil
		},
	}
}

// result is the JSON response body.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
}

// New returns a [Handler] that runs checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs all checkers concurrently, each with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, allOK := h.run(r.Context())

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func (h *Handler) run(ctx context.Context) (map[string]string, bool) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)

	// The group's context is not used: one failing check must not cancel
	// the others.
	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			err := c.Check(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()
	return checks, allOK
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
