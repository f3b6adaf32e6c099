// Package vmfault implements the top-level translation fault protocol
// that composes the inverted page table, swap file, address space, and
// TLB manager on every fault: classify the address, look up or allocate
// a frame, evict a victim if memory is full, install the translation,
// fill the frame from its source, and install the final permissions.
package vmfault

import (
	"context"

	"defs"
	"addrspace"
	"ipt"
	"stats"
	"swapfile"
	"tlbmgr"
)

// / ProcessHost is the external collaborator surface: access to the
// / current process and its address space, another process's address
// / space by pid, and the process-exit hook the fatal-error paths call
// / with code -1.
type ProcessHost interface {
	CurrentPid() (defs.Pid_t, bool)
	CurrentAS() (*addrspace.AS_t, bool)
	GetAS(pid defs.Pid_t) (*addrspace.AS_t, bool)
	Exit(pid defs.Pid_t, code int)
}

// / Config bundles the compile-time constants threaded through the
// / packages that need them. The swap file's size is configured
// / separately, by the caller, when opening the swapfile.File_t.
type Config struct {
	NumTLB     int
	StackPages int
	PageSize   int
}

// / Context_t is a VM context: the IPT, swap bitmap, TLB round-robin
// / cursor, and fault counters are all process-wide state, modeled here
// / as one struct passed explicitly to every operation rather than kept
// / in package globals, so tests can run multiple independent instances
// / concurrently.
type Context_t struct {
	cfg   Config
	ipt   *ipt.Table_t
	tlb   *tlbmgr.Manager_t
	swap  *swapfile.File_t
	mem   *PhysMem_t
	host  ProcessHost
	stats stats.Fault_t
}

// / NewContext wires a fresh VM context: nframes physical frames backed
// / by an in-memory PhysMem_t, a TLB of cfg.NumTLB entries, and the given
// / already-opened swap file.
func NewContext(cfg Config, nframes int, host ProcessHost, swap *swapfile.File_t) *Context_t {
	return &Context_t{
		cfg:  cfg,
		ipt:  ipt.New(nframes),
		tlb:  tlbmgr.New(cfg.NumTLB),
		swap: swap,
		mem:  NewPhysMem(nframes, cfg.PageSize),
		host: host,
	}
}

// / Stats returns the live fault counters.
func (c *Context_t) Stats() *stats.Fault_t {
	return &c.stats
}

func (c *Context_t) pageAlign(vaddr defs.Vaddr_t) defs.Vaddr_t {
	return vaddr &^ defs.Vaddr_t(c.cfg.PageSize-1)
}

func (c *Context_t) bumpInstall(resolvedFree bool) {
	if resolvedFree {
		c.stats.ResolvedFree.Inc()
	} else {
		c.stats.ResolvedReplace.Inc()
	}
}

// / VMFault is the sole entry point from the trap handler. It returns 0
// / on success (the faulting instruction should be retried) or a nonzero
// / value: the negated error kind for EINVAL and EFAULT, and -1 for fatal
// / errors, which additionally terminate the faulting process via
// / ProcessHost.Exit(pid, -1) before returning.
func (c *Context_t) VMFault(faultType defs.FaultType_t, faultAddr defs.Vaddr_t) int {
	c.stats.Total.Inc()
	va := c.pageAlign(faultAddr)

	switch faultType {
	case defs.FaultReadOnly:
		// All user pages are installed writable except read-only code
		// pages, whose writable bit is cleared only after their first
		// load: a READONLY fault therefore means a write to code.
		if pid, ok := c.host.CurrentPid(); ok {
			logf("pid=%d va=%#x: write to read-only code page", pid, va)
			c.host.Exit(pid, -1)
		}
		return -1
	case defs.FaultRead, defs.FaultWrite:
	default:
		return -int(defs.EINVAL)
	}

	pid, ok := c.host.CurrentPid()
	if !ok {
		return -int(defs.EFAULT)
	}
	as, ok := c.host.CurrentAS()
	if !ok {
		return -int(defs.EFAULT)
	}

	seg, errk := as.AddressSegment(va)
	if errk != 0 {
		return -int(errk)
	}

	if frame := c.ipt.Lookup(pid, va); frame != defs.NoFrame {
		logf("pid=%d va=%#x already resident in frame %d", pid, va, frame)
		c.bumpInstall(c.tlb.Install(va, frame, seg != defs.SegCode))
		return 0
	}

	frame, ok := c.ipt.AllocFrame()
	if !ok {
		vframe, vpid, vva, ok2 := c.ipt.GetVictim()
		if !ok2 {
			// Physical memory is exhausted and every resident frame is
			// kernel-owned, so none can be evicted: fatal.
			logf("pid=%d va=%#x: no free frame and no evictable victim", pid, va)
			c.host.Exit(pid, -1)
			return -1
		}
		logf("pid=%d va=%#x: evicting frame %d (pid=%d va=%#x)", pid, va, vframe, vpid, vva)
		vas, ok3 := c.host.GetAS(vpid)
		if !ok3 {
			panic("vmfault: victim pid has no address space")
		}
		vseg, verr := vas.AddressSegment(vva)
		if verr != 0 {
			panic("vmfault: resident victim address lies outside every segment")
		}
		if errk := c.swap.SwapOut(context.Background(), vpid, vva, vseg, c.mem.Frame(vframe)); errk != 0 {
			logf("pid=%d va=%#x: swap-out of victim frame %d failed: %v", pid, va, vframe, errk)
			c.host.Exit(pid, -1)
			return -1
		}
		// TLB invalidation of the victim precedes any reuse of its frame,
		// and happens on the current CPU only: this is a single-CPU
		// design.
		c.tlb.Invalidate(vva)
		c.ipt.Remove(vframe)
		frame = vframe
	}

	// IPT insertion for a newly allocated frame precedes the I/O that
	// fills it. The fill itself writes straight into the frame's backing
	// buffer.
	if errk := c.ipt.Add(pid, va, frame, false); errk != 0 {
		c.host.Exit(pid, -1)
		return -1
	}

	// Always installed writable before the fill; the writable bit is
	// cleared for code pages only after the load completes (step below),
	// never before.
	c.bumpInstall(c.tlb.Install(va, frame, true))

	buf := c.mem.Frame(frame)
	switch seg {
	case defs.SegCode, defs.SegData:
		found, errk := c.swap.SwapIn(context.Background(), pid, va, buf)
		if errk != 0 {
			logf("pid=%d va=%#x: swap-in failed: %v", pid, va, errk)
			c.host.Exit(pid, -1)
			return -1
		}
		if !found {
			logf("pid=%d va=%#x: loading %s page from image", pid, va, seg)
			if errk := as.LoadPage(va, seg, buf); errk != 0 {
				c.host.Exit(pid, -1)
				return -1
			}
		}
	case defs.SegStack:
		found, errk := c.swap.SwapIn(context.Background(), pid, va, buf)
		if errk != 0 {
			c.host.Exit(pid, -1)
			return -1
		}
		if !found {
			for i := range buf {
				buf[i] = 0
			}
		}
	}

	if seg == defs.SegCode {
		// Clearing the writable bit for a code page follows its load;
		// this is the final step.
		c.tlb.ClearWritable(va)
	}

	return 0
}

// / DestroyAddressSpace tears down every IPT entry and swap slot
// / belonging to pid and flushes the TLB.
func (c *Context_t) DestroyAddressSpace(pid defs.Pid_t) {
	logf("pid=%d: tearing down address space", pid)
	c.ipt.FreeByPid(pid)
	c.swap.FreePid(pid)
	c.tlb.FlushAll()
}

// / VMTlbShootdown is fatal: this is a single-CPU design, so no other CPU
// / can ever need a TLB entry invalidated on its behalf.
func (c *Context_t) VMTlbShootdown(ts any) {
	panic("vmfault: tlb shootdown is unsupported on a single-CPU design")
}
