// Package emulator manages the third-party emulator runtime's process-wide
// initialization. The runtime's loader script may only be injected once per
// page load; LoadGuard makes that first-caller-wins contract explicit
// instead of a bare mutable flag.
package emulator

import "sync"

// LoadGuard is a one-shot latch around the emulator loader. The first
// EnsureLoaded caller runs the load function; every other caller observes
// the first run's outcome. The latch is set once per process and never
// reset.
type LoadGuard struct {
	once   sync.Once
	mu     sync.RWMutex
	loaded bool
	err    error
}

// EnsureLoaded runs load exactly once across all callers and returns the
// outcome of that single run. Concurrent callers block until the first run
// finishes.
func (g *LoadGuard) EnsureLoaded(load func() error) error {
	g.once.Do(func() {
		err := load()
		g.mu.Lock()
		g.loaded = err == nil
		g.err = err
		g.mu.Unlock()
	})
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

// Loaded reports whether the one-shot load has completed successfully.
func (g *LoadGuard) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaded
}
