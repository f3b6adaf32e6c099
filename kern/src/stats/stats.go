// Package stats implements the monotonic counters exported by the fault
// handler.
package stats

import (
	"fmt"
	"sync/atomic"
)

/// Counter_t is an always-live statistical counter.
type Counter_t int64

/// Inc atomically increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(c), 1)
}

/// Get returns the current value of the counter.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

/// Fault_t holds the fault-path counters: total faults, faults resolved
/// into a free TLB slot, and faults resolved by TLB replacement.
type Fault_t struct {
	Total           Counter_t
	ResolvedFree    Counter_t
	ResolvedReplace Counter_t
}

/// String renders the counters for debugging.
func (f *Fault_t) String() string {
	return fmt.Sprintf("faults: total=%d free=%d replace=%d",
		f.Total.Get(), f.ResolvedFree.Get(), f.ResolvedReplace.Get())
}
