package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds the total time spent probing subsystems.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a health check for one critical dependency.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthProbeFunc adapts a named function to the HealthProbe interface.
type HealthProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p HealthProbeFunc) Name() string                    { return p.ProbeName }
func (p HealthProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs all registered probes concurrently under a shared
// deadline. Returns 200 when every probe passes, 503 when any fails. The
// endpoint is unauthenticated and mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	var (
		mu         sync.Mutex
		components = make(map[string]componentStatus, len(s.HealthProbes))
		wg         sync.WaitGroup
		degraded   bool
	)

	for _, probe := range s.HealthProbes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if rvr := recover(); rvr != nil {
						err = fmt.Errorf("probe panicked: %v", rvr)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				degraded = true
				components[p.Name()] = componentStatus{Status: "unhealthy", Message: err.Error()}
			} else {
				components[p.Name()] = componentStatus{Status: "healthy"}
			}
		}(probe)
	}
	wg.Wait()

	resp := healthResponse{Status: "healthy", Components: components}
	status := http.StatusOK
	if degraded {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}
