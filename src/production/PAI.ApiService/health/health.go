package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CheckFunc reports whether one dependency is usable
type CheckFunc func(ctx context.Context) error

// HealthChecker runs the registered dependency checks
type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]CheckFunc)}
}

// Register adds or replaces the check for name
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Names returns the registered check names in order
func (h *HealthChecker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetHealthStatus runs every check concurrently and reports "ok" or "degraded"
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (map[string]interface{}, bool) {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	results := make(map[string]interface{}, len(checks))
	healthy := true

	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			err := check(ctx)

			rmu.Lock()
			defer rmu.Unlock()
			if err != nil {
				healthy = false
				results[name] = map[string]interface{}{
					"status": "error",
					"error":  err.Error(),
				}
				return
			}
			results[name] = map[string]interface{}{
				"status": "ok",
			}
		}(name, check)
	}
	wg.Wait()

	overallStatus := "ok"
	if !healthy {
		overallStatus = "degraded"
	}

	return map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	}, healthy
}
