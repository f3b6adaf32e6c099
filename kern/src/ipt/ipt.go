// Package ipt implements the inverted page table: one entry per physical
// frame, plus clock (second-chance) victim selection. A flat array indexed
// by frame number, with an embedded sync.Mutex guarding short,
// non-blocking critical sections — the lock is never held across disk
// I/O.
package ipt

import (
	"sync"

	"defs"
	"hashtable"
)

// / Flags_t carries the replacement-policy and ownership bits of a
// / resident IPT entry.
type Flags_t uint8

const (
	// FlagRef is the reference/age bit consulted and cleared by the clock
	// algorithm.
	FlagRef Flags_t = 1 << iota
	// FlagKernel marks a frame as kernel-owned; such frames are never
	// selected as victims.
	FlagKernel
)

type entryState uint8

const (
	entryFree entryState = iota
	entryResident
)

type entry_t struct {
	state entryState
	pid   defs.Pid_t
	vaddr defs.Vaddr_t
	flags Flags_t
}

// / Table_t is the inverted page table. Frame numbers run from 1..nframes;
// / frame 0 is the reserved non-user sentinel meaning "not resident".
type Table_t struct {
	mu      sync.Mutex
	entries []entry_t // index 0 unused
	ht      *hashtable.Table_t
	cursor  int // clock hand, persists across GetVictim calls
}

// / New allocates an inverted page table covering nframes physical frames.
// / The backing hash map is sized to 2x nframes, comfortably above the
// / live-entry bound.
func New(nframes int) *Table_t {
	if nframes <= 0 {
		panic("ipt: nframes must be positive")
	}
	return &Table_t{
		entries: make([]entry_t, nframes+1),
		ht:      hashtable.New(2 * nframes),
	}
}

func key(pid defs.Pid_t, vaddr defs.Vaddr_t) hashtable.Key {
	return hashtable.Key{Pid: pid, Vaddr: vaddr}
}

// / Lookup returns the frame resident for (pid, vaddr), or defs.NoFrame if
// / not resident. A hit sets the frame's reference bit, feeding the clock
// / algorithm's age tracking.
func (t *Table_t) Lookup(pid defs.Pid_t, vaddr defs.Vaddr_t) defs.Frame_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.ht.Lookup(key(pid, vaddr))
	if !ok {
		return defs.NoFrame
	}
	frame := defs.Frame_t(idx)
	t.entries[frame].flags |= FlagRef
	return frame
}

// / AllocFrame finds a free frame (first-fit). It returns ok=false when no
// / frame is free, signaling the caller to evict instead.
func (t *Table_t) AllocFrame() (defs.Frame_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].state == entryFree {
			return defs.Frame_t(i), true
		}
	}
	return defs.NoFrame, false
}

// / Add installs (pid, vaddr) as resident in frame; frame must currently
// / be free. kernel marks the page as non-evictable.
func (t *Table_t) Add(pid defs.Pid_t, vaddr defs.Vaddr_t, frame defs.Frame_t, kernel bool) defs.Err_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &t.entries[frame]
	if e.state != entryFree {
		panic("ipt: Add on non-free frame")
	}
	if err := t.ht.Insert(key(pid, vaddr), int(frame)); err != 0 {
		return err
	}
	flags := FlagRef
	if kernel {
		flags |= FlagKernel
	}
	*e = entry_t{state: entryResident, pid: pid, vaddr: vaddr, flags: flags}
	return 0
}

// / Remove transitions frame back to Free and drops its hash-map entry.
func (t *Table_t) Remove(frame defs.Frame_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &t.entries[frame]
	if e.state != entryResident {
		panic("ipt: Remove on non-resident frame")
	}
	t.ht.Remove(key(e.pid, e.vaddr))
	*e = entry_t{}
}

// / GetVictim selects a user-owned resident frame for eviction using the
// / clock (second-chance) algorithm: the cursor advances around the
// / table; kernel-owned frames are skipped; a frame with its reference bit
// / set has the bit cleared and is passed over; the first user-owned
// / frame found with reference=0 is returned. The cursor position
// / persists across calls.
func (t *Table_t) GetVictim() (frame defs.Frame_t, pid defs.Pid_t, vaddr defs.Vaddr_t, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.entries)
	if t.cursor == 0 {
		t.cursor = 1
	}
	for i := 0; i < 2*n; i++ {
		idx := t.cursor
		t.cursor++
		if t.cursor >= n {
			t.cursor = 1
		}
		e := &t.entries[idx]
		if e.state != entryResident || e.flags&FlagKernel != 0 {
			continue
		}
		if e.flags&FlagRef != 0 {
			e.flags &^= FlagRef
			continue
		}
		return defs.Frame_t(idx), e.pid, e.vaddr, true
	}
	return defs.NoFrame, 0, 0, false
}

// / FreeByPid frees every resident frame belonging to pid, used when an
// / address space is destroyed.
func (t *Table_t) FreeByPid(pid defs.Pid_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 1; i < len(t.entries); i++ {
		e := &t.entries[i]
		if e.state == entryResident && e.pid == pid {
			t.ht.Remove(key(e.pid, e.vaddr))
			*e = entry_t{}
		}
	}
}

// / Resident reports whether frame currently holds a mapping, and if so
// / for which (pid, vaddr).
func (t *Table_t) Resident(frame defs.Frame_t) (pid defs.Pid_t, vaddr defs.Vaddr_t, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &t.entries[frame]
	if e.state != entryResident {
		return 0, 0, false
	}
	return e.pid, e.vaddr, true
}
