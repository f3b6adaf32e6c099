// Package ipl models the interrupt-priority-level discipline required
// around every TLB mutation: raise to splhigh, do the work, restore on
// every exit path. Go's defer makes the restore unconditional across the
// multiple early returns on the TLB paths.
package ipl

import "sync"

// / Token_t is a single-CPU stand-in for splhigh/splx: acquiring it raises
// / the priority level, and Release (always via defer) restores it. It is
// / backed by a mutex rather than real interrupt masking since this is a
// / hosted simulation, but the acquire/release discipline and the assertion
// / helper mirror the kernel's.
type Token_t struct {
	mu     sync.Mutex
	raised bool
}

// / Raise raises the priority level and returns a token whose Release
// / restores it. Callers should `defer tok.Release()` immediately.
func (t *Token_t) Raise() *heldToken {
	t.mu.Lock()
	t.raised = true
	return &heldToken{t: t}
}

// / Lockassert panics if the priority level is not currently raised.
func (t *Token_t) Lockassert() {
	if !t.raised {
		panic("ipl: priority level must be raised")
	}
}

type heldToken struct {
	t        *Token_t
	released bool
}

// / Release restores the priority level. It is idempotent so a deferred
// / Release after an explicit early Release is harmless.
func (h *heldToken) Release() {
	if h.released {
		return
	}
	h.released = true
	h.t.raised = false
	h.t.mu.Unlock()
}
