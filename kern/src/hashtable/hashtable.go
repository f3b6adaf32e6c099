// Package hashtable implements a fixed-capacity open-addressed map from
// (pid, vaddr) to a slot index, used by the inverted page table to go
// from a faulting address back to its resident frame.
package hashtable

import "defs"

// / Key is a (pid, vaddr) pair. EmptyKey denotes an unused slot.
type Key struct {
	Pid   defs.Pid_t
	Vaddr defs.Vaddr_t
}

// / EmptyKey is the sentinel key marking an empty slot.
var EmptyKey = Key{Pid: defs.NoPid, Vaddr: defs.NoVaddr}

func (k Key) isEmpty() bool {
	return k == EmptyKey
}

// / Item is a Key together with the index the caller associated with it
// / (for the IPT, a physical frame number).
type Item struct {
	Key   Key
	Index int
}

type slotState uint8

const (
	slotFree slotState = iota
	slotUsed
	slotTombstone
)

type slot_t struct {
	state slotState
	item  Item
}

// / Table_t is a fixed-capacity open-addressed hash table with linear
// / probing. Deletions leave tombstones behind so later probes for other
// / keys that collided with the deleted one still terminate correctly.
type Table_t struct {
	slots []slot_t
	count int
}

// / New allocates a table with room for `capacity` entries, fixed at
// / construction time.
func New(capacity int) *Table_t {
	if capacity <= 0 {
		panic("hashtable: capacity must be positive")
	}
	return &Table_t{slots: make([]slot_t, capacity)}
}

func khash(k Key) uint32 {
	h := uint32(2166136261)
	h = (h ^ uint32(uint64(k.Pid))) * 16777619
	h = (h ^ uint32(uint64(k.Vaddr))) * 16777619
	h = (h ^ uint32(uint64(k.Vaddr)>>32)) * 16777619
	return h * 2654435761
}

func (t *Table_t) index(h uint32) int {
	return int(h % uint32(len(t.slots)))
}

// / Insert records that key maps to index. It returns defs.EDUPLICATE if
// / key is already present.
func (t *Table_t) Insert(key Key, index int) defs.Err_t {
	if key.isEmpty() {
		panic("hashtable: insert of sentinel empty key")
	}
	if t.count >= len(t.slots) {
		panic("hashtable: table full")
	}
	h := khash(key)
	start := t.index(h)
	firstTomb := -1
	for i := 0; i < len(t.slots); i++ {
		pos := (start + i) % len(t.slots)
		s := &t.slots[pos]
		switch s.state {
		case slotFree:
			at := pos
			if firstTomb >= 0 {
				at = firstTomb
			}
			t.slots[at] = slot_t{state: slotUsed, item: Item{Key: key, Index: index}}
			t.count++
			return 0
		case slotTombstone:
			if firstTomb < 0 {
				firstTomb = pos
			}
		case slotUsed:
			if s.item.Key == key {
				return defs.EDUPLICATE
			}
		}
	}
	if firstTomb >= 0 {
		t.slots[firstTomb] = slot_t{state: slotUsed, item: Item{Key: key, Index: index}}
		t.count++
		return 0
	}
	panic("hashtable: no free slot despite count check")
}

// / Lookup returns the index stored for key, or ok=false if not present.
func (t *Table_t) Lookup(key Key) (int, bool) {
	h := khash(key)
	start := t.index(h)
	for i := 0; i < len(t.slots); i++ {
		pos := (start + i) % len(t.slots)
		s := &t.slots[pos]
		switch s.state {
		case slotFree:
			return 0, false
		case slotUsed:
			if s.item.Key == key {
				return s.item.Index, true
			}
		}
	}
	return 0, false
}

// / Remove deletes key from the table, leaving a tombstone. It returns
// / defs.ENOTFOUND if key is not present.
func (t *Table_t) Remove(key Key) defs.Err_t {
	h := khash(key)
	start := t.index(h)
	for i := 0; i < len(t.slots); i++ {
		pos := (start + i) % len(t.slots)
		s := &t.slots[pos]
		switch s.state {
		case slotFree:
			return defs.ENOTFOUND
		case slotUsed:
			if s.item.Key == key {
				s.state = slotTombstone
				s.item = Item{}
				t.count--
				return 0
			}
		}
	}
	return defs.ENOTFOUND
}

// / ClearPid removes every entry belonging to pid, used at process exit.
func (t *Table_t) ClearPid(pid defs.Pid_t) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.state == slotUsed && s.item.Key.Pid == pid {
			s.state = slotTombstone
			s.item = Item{}
			t.count--
		}
	}
}

// / Len returns the number of live entries.
func (t *Table_t) Len() int {
	return t.count
}
