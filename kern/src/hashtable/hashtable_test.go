package hashtable

import (
	"testing"

	"defs"
)

func k(pid int32, vaddr uintptr) Key {
	return Key{Pid: defs.Pid_t(pid), Vaddr: defs.Vaddr_t(vaddr)}
}

func TestInsertLookupRemove(t *testing.T) {
	ht := New(8)

	if err := ht.Insert(k(1, 0x1000), 5); err != 0 {
		t.Fatalf("Insert: unexpected error %v", err)
	}
	idx, ok := ht.Lookup(k(1, 0x1000))
	if !ok || idx != 5 {
		t.Fatalf("Lookup: got (%d, %v), want (5, true)", idx, ok)
	}

	if err := ht.Remove(k(1, 0x1000)); err != 0 {
		t.Fatalf("Remove: unexpected error %v", err)
	}
	if _, ok := ht.Lookup(k(1, 0x1000)); ok {
		t.Fatal("Lookup after Remove: still found")
	}
}

func TestInsertDuplicate(t *testing.T) {
	ht := New(8)
	if err := ht.Insert(k(1, 0x1000), 5); err != 0 {
		t.Fatalf("first Insert: unexpected error %v", err)
	}
	if err := ht.Insert(k(1, 0x1000), 9); err != defs.EDUPLICATE {
		t.Fatalf("second Insert: got %v, want EDUPLICATE", err)
	}
}

func TestRemoveNotFound(t *testing.T) {
	ht := New(8)
	if err := ht.Remove(k(1, 0x1000)); err != defs.ENOTFOUND {
		t.Fatalf("Remove of missing key: got %v, want ENOTFOUND", err)
	}
}

// Probe sequences must survive tombstones: deleting an entry that an
// later-inserted colliding key probed past must not break lookup of the
// surviving key.
func TestTombstoneSurvivesProbe(t *testing.T) {
	ht := New(4)
	// All three keys hash to the same home slot in a 4-slot table, so b
	// and c are stored past a and must be found by probing past its
	// tombstone.
	a, b, c := k(1, 0), k(1, 4), k(1, 8)

	for _, key := range []Key{a, b, c} {
		if err := ht.Insert(key, 1); err != 0 {
			t.Fatalf("Insert(%v): unexpected error %v", key, err)
		}
	}
	if err := ht.Remove(a); err != 0 {
		t.Fatalf("Remove(a): unexpected error %v", err)
	}
	for _, key := range []Key{b, c} {
		if _, ok := ht.Lookup(key); !ok {
			t.Fatalf("Lookup(%v) after deleting a colliding earlier key: not found", key)
		}
	}
}

// A table with no slotFree slots left (every slot used or tombstoned)
// must still reuse a tombstone rather than panicking, as long as count
// is under capacity.
func TestInsertReclaimsTombstoneWhenNoFreeSlotRemains(t *testing.T) {
	ht := New(1)
	if err := ht.Insert(k(1, 0), 1); err != 0 {
		t.Fatalf("first Insert: unexpected error %v", err)
	}
	if err := ht.Remove(k(1, 0)); err != 0 {
		t.Fatalf("Remove: unexpected error %v", err)
	}
	if err := ht.Insert(k(2, 0), 2); err != 0 {
		t.Fatalf("Insert into an all-tombstone table: unexpected error %v", err)
	}
	if idx, ok := ht.Lookup(k(2, 0)); !ok || idx != 2 {
		t.Fatalf("Lookup: got (%d, %v), want (2, true)", idx, ok)
	}
}

func TestClearPid(t *testing.T) {
	ht := New(8)
	ht.Insert(k(1, 0x1000), 1)
	ht.Insert(k(1, 0x2000), 2)
	ht.Insert(k(2, 0x1000), 3)

	ht.ClearPid(defs.Pid_t(1))

	if _, ok := ht.Lookup(k(1, 0x1000)); ok {
		t.Fatal("pid 1 entry survived ClearPid")
	}
	if _, ok := ht.Lookup(k(1, 0x2000)); ok {
		t.Fatal("pid 1 entry survived ClearPid")
	}
	if idx, ok := ht.Lookup(k(2, 0x1000)); !ok || idx != 3 {
		t.Fatalf("pid 2 entry was wrongly cleared: got (%d, %v)", idx, ok)
	}
	if got, want := ht.Len(), 1; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
}

func TestEmptyKeyIsSentinel(t *testing.T) {
	if !EmptyKey.isEmpty() {
		t.Fatal("EmptyKey.isEmpty() = false")
	}
	if got := (Key{Pid: defs.NoPid, Vaddr: defs.NoVaddr}); got != EmptyKey {
		t.Fatalf("EmptyKey = %+v, want (%d, %d)", EmptyKey, defs.NoPid, defs.NoVaddr)
	}
}
