package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout is the maximum time allowed for all health probes to
// complete. If any probe exceeds this deadline, the health check returns
// 503 Service Unavailable.
const healthCheckTimeout = 2 * time.Second

// HealthProbe defines the interface for a subsystem health check. Each
// probe represents a critical dependency that must be operational for the
// service to function correctly.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "database").
	Name() string

	// Check performs the health check against the subsystem. It should
	// respect the context deadline and return an error if the subsystem is
	// unhealthy or unreachable.
	Check(ctx context.Context) error
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth executes all registered health probes concurrently with a
// short timeout. It returns 200 OK if every probe reports healthy, and 503
// Service Unavailable if any subsystem fails or the deadline is exceeded.
//
// Probes run in an errgroup so a slow dependency does not serialize the
// others; a probe that ignores its context and hangs is reported as timed
// out rather than blocking the endpoint. This endpoint is public and is
// mounted at GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		// No probes registered: report healthy with no component details.
		JSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	// results maps probe name to its outcome. Presence means the probe
	// completed; a nil value means it passed.
	var (
		mu      sync.Mutex
		results = make(map[string]error, len(probes))
	)

	var g errgroup.Group
	for _, probe := range probes {
		probe := probe
		g.Go(func() error {
			var err error
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						err = fmt.Errorf("probe panicked: %v", rec)
					}
				}()
				err = probe.Check(ctx)
			}()

			mu.Lock()
			results[probe.Name()] = err
			mu.Unlock()
			// Failures are reported per component, never short-circuited.
			return nil
		})
	}

	// Wait for all probes to complete or the deadline to expire. A stuck
	// probe leaves its entry missing from results.
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
	completed := make(map[string]error, len(results))
	for name, err := range results {
		completed[name] = err
	}
	mu.Unlock()

	components := make(map[string]componentStatus, len(probes))
	allHealthy := true

	for _, probe := range probes {
		name := probe.Name()
		err, ok := completed[name]
		switch {
		case !ok:
			allHealthy = false
			components[name] = componentStatus{
				Status:  "failed",
				Message: "health check timed out",
			}
		case err != nil:
			allHealthy = false
			components[name] = componentStatus{
				Status:  "failed",
				Message: err.Error(),
			}
		default:
			components[name] = componentStatus{Status: "ok"}
		}
	}

	resp := healthResponse{Components: components}
	if allHealthy {
		resp.Status = "ok"
		JSON(w, r, http.StatusOK, resp)
		return
	}
	resp.Status = "unavailable"
	JSON(w, r, http.StatusServiceUnavailable, resp)
}
