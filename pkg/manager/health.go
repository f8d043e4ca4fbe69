package manager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jllopis/launcher/pkg/core"
)

type stats struct {
	dispatches   atomic.Uint64
	faults       atomic.Uint64
	loadFailures atomic.Uint64
	lastFaults   atomic.Int64
}

// Stats is a point-in-time view of manager activity.
type Stats struct {
	Loaded       int    `json:"loaded"`
	Enabled      int    `json:"enabled"`
	Dispatches   uint64 `json:"dispatches"`
	Faults       uint64 `json:"faults"`
	LoadFailures uint64 `json:"load_failures"`
	LastFaults   int64  `json:"last_dispatch_faults"`
}

// Stats returns counters since the manager was created.
func (m *Manager) Stats() Stats {
	return Stats{
		Loaded:       len(m.loaded.Get()),
		Enabled:      len(m.enabled.Get()),
		Dispatches:   m.stats.dispatches.Load(),
		Faults:       m.stats.faults.Load(),
		LoadFailures: m.stats.loadFailures.Load(),
		LastFaults:   m.stats.lastFaults.Load(),
	}
}

// HealthChecker reports degraded while the most recent dispatch isolated
// at least one fault.
func (m *Manager) HealthChecker() core.HealthChecker {
	return core.CheckFunc(func(context.Context) core.HealthResult {
		s := m.Stats()
		result := core.HealthResult{
			Status:    core.HealthHealthy,
			Component: "extensions",
			Message:   fmt.Sprintf("%d loaded, %d enabled", s.Loaded, s.Enabled),
			LastCheck: time.Now(),
		}
		if s.LastFaults > 0 {
			result.Status = core.HealthDegraded
			result.Message = fmt.Sprintf("%d extension faults in last dispatch", s.LastFaults)
		}
		return result
	})
}
