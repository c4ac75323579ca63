package aio

import "sync"

// EnableGuard reference-counts a shared hardware enable, such as the PDM block clock.
// The underlying resource is switched on by the first Acquire and off by the last Release.
type EnableGuard struct {
	mu     sync.Mutex
	name   string
	count  int
	toggle func(on bool)
}

// NewEnableGuard returns a guard calling toggle on every net state change. toggle may be nil.
func NewEnableGuard(name string, toggle func(on bool)) *EnableGuard {
	return &EnableGuard{name: name, toggle: toggle}
}

// Name returns the resource name.
func (g *EnableGuard) Name() string {
	return g.name
}

// Acquire takes one reference and returns the net enabled state, always true.
func (g *EnableGuard) Acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count++
	if g.count == 1 && g.toggle != nil {
		g.toggle(true)
	}

	return g.count > 0
}

// Release drops one reference and returns the net enabled state.
// Releasing an idle guard is a no-op.
func (g *EnableGuard) Release() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count == 0 {
		return false
	}

	g.count--
	if g.count == 0 && g.toggle != nil {
		g.toggle(false)
	}

	return g.count > 0
}

// Enabled reports whether any reference is held.
func (g *EnableGuard) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.count > 0
}

// Count returns the number of references held.
func (g *EnableGuard) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.count
}
