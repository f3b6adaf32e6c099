// Package tlbmgr implements TLB install, invalidate, flush-all, and
// round-robin replacement, with every mutation guarded by the ipl
// package's scoped priority-level token.
package tlbmgr

import (
	"defs"
	"ipl"
)

// / Entry_t is one (hi, lo)-equivalent TLB slot: a virtual tag, the frame
// / it maps to, and the writable (DIRTY) bit. Valid is the VALID bit.
type Entry_t struct {
	Valid    bool
	Vaddr    defs.Vaddr_t
	Frame    defs.Frame_t
	Writable bool
}

// / Manager_t is a fully-associative software TLB: a fixed-size array of
// / entries with no hardware ASID tagging, so entries are matched by
// / virtual address alone and a context switch must call FlushAll.
type Manager_t struct {
	tok     ipl.Token_t
	entries []Entry_t
	cursor  int
}

// / New allocates a TLB manager with numTLB entries, all initially
// / invalid.
func New(numTLB int) *Manager_t {
	if numTLB <= 0 {
		panic("tlbmgr: numTLB must be positive")
	}
	return &Manager_t{entries: make([]Entry_t, numTLB)}
}

// / Install maps vaddr to frame with the given writable bit. If any TLB
// / slot is invalid it is used and Install returns true ("resolved into a
// / free slot"); otherwise the round-robin cursor's target is silently
// / overwritten (its IPT entry stays resident) and Install returns false
// / ("resolved by replacement"). The cursor advances by one (mod numTLB)
// / on every replacement.
func (m *Manager_t) Install(vaddr defs.Vaddr_t, frame defs.Frame_t, writable bool) (resolvedFree bool) {
	tok := m.tok.Raise()
	defer tok.Release()

	for i := range m.entries {
		if !m.entries[i].Valid {
			m.entries[i] = Entry_t{Valid: true, Vaddr: vaddr, Frame: frame, Writable: writable}
			return true
		}
	}

	victim := m.cursor
	m.cursor = (m.cursor + 1) % len(m.entries)
	m.entries[victim] = Entry_t{Valid: true, Vaddr: vaddr, Frame: frame, Writable: writable}
	return false
}

// / Invalidate rewrites the slot tagged with vaddr, if any, to the invalid
// / sentinel.
func (m *Manager_t) Invalidate(vaddr defs.Vaddr_t) bool {
	tok := m.tok.Raise()
	defer tok.Release()

	for i := range m.entries {
		if m.entries[i].Valid && m.entries[i].Vaddr == vaddr {
			m.entries[i] = Entry_t{}
			return true
		}
	}
	return false
}

// / ClearWritable clears the writable (DIRTY) bit of the slot tagged with
// / vaddr, leaving the rest of the entry untouched. Used after a code page
// / finishes loading, to make it read-only going forward.
func (m *Manager_t) ClearWritable(vaddr defs.Vaddr_t) bool {
	tok := m.tok.Raise()
	defer tok.Release()

	for i := range m.entries {
		if m.entries[i].Valid && m.entries[i].Vaddr == vaddr {
			m.entries[i].Writable = false
			return true
		}
	}
	return false
}

// / FlushAll invalidates every entry, used at context switch / address
// / space destruction.
func (m *Manager_t) FlushAll() {
	tok := m.tok.Raise()
	defer tok.Release()

	for i := range m.entries {
		m.entries[i] = Entry_t{}
	}
}

// / Probe returns the entry tagged with vaddr, if any.
func (m *Manager_t) Probe(vaddr defs.Vaddr_t) (Entry_t, bool) {
	tok := m.tok.Raise()
	defer tok.Release()

	for i := range m.entries {
		if m.entries[i].Valid && m.entries[i].Vaddr == vaddr {
			return m.entries[i], true
		}
	}
	return Entry_t{}, false
}

// / Cursor reports the current round-robin position.
func (m *Manager_t) Cursor() int {
	return m.cursor
}
