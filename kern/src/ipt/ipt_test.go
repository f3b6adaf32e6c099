package ipt

import (
	"testing"

	"defs"
)

func TestAllocAddLookup(t *testing.T) {
	tbl := New(4)

	frame, ok := tbl.AllocFrame()
	if !ok {
		t.Fatal("AllocFrame: no free frame on an empty table")
	}
	if err := tbl.Add(1, 0x1000, frame, false); err != 0 {
		t.Fatalf("Add: unexpected error %v", err)
	}
	if got := tbl.Lookup(1, 0x1000); got != frame {
		t.Fatalf("Lookup: got frame %d, want %d", got, frame)
	}
	if got := tbl.Lookup(1, 0x2000); got != defs.NoFrame {
		t.Fatalf("Lookup of unmapped vaddr: got %d, want NoFrame", got)
	}
}

func TestAddOnNonFreeFramePanics(t *testing.T) {
	tbl := New(2)
	frame, _ := tbl.AllocFrame()
	tbl.Add(1, 0x1000, frame, false)

	defer func() {
		if recover() == nil {
			t.Fatal("Add on already-resident frame: expected panic")
		}
	}()
	tbl.Add(2, 0x2000, frame, false)
}

func TestRemoveFreesFrame(t *testing.T) {
	tbl := New(2)
	frame, _ := tbl.AllocFrame()
	tbl.Add(1, 0x1000, frame, false)
	tbl.Remove(frame)

	if got := tbl.Lookup(1, 0x1000); got != defs.NoFrame {
		t.Fatalf("Lookup after Remove: got %d, want NoFrame", got)
	}
	if _, ok := tbl.AllocFrame(); !ok {
		t.Fatal("AllocFrame after Remove: frame not returned to the free set")
	}
}

func TestGetVictimSkipsKernelFrames(t *testing.T) {
	tbl := New(2)
	kframe, _ := tbl.AllocFrame()
	tbl.Add(0, 0x1000, kframe, true)

	uframe, _ := tbl.AllocFrame()
	tbl.Add(1, 0x2000, uframe, false)

	frame, pid, vaddr, ok := tbl.GetVictim()
	if !ok {
		t.Fatal("GetVictim: expected a user frame victim")
	}
	if frame != uframe || pid != 1 || vaddr != 0x2000 {
		t.Fatalf("GetVictim: got (frame=%d pid=%d vaddr=%#x), want (frame=%d pid=1 vaddr=0x2000)",
			frame, pid, vaddr, uframe)
	}
}

func TestGetVictimNoneWhenAllKernel(t *testing.T) {
	tbl := New(1)
	frame, _ := tbl.AllocFrame()
	tbl.Add(0, 0x1000, frame, true)

	if _, _, _, ok := tbl.GetVictim(); ok {
		t.Fatal("GetVictim: expected no victim when every resident frame is kernel-owned")
	}
}

// The clock algorithm gives a referenced frame one pass to clear its
// reference bit before it can be chosen; with every frame referenced,
// GetVictim must still return one of them once the hand comes around.
func TestGetVictimClockSecondChance(t *testing.T) {
	tbl := New(2)
	f1, _ := tbl.AllocFrame()
	tbl.Add(1, 0x1000, f1, false)
	f2, _ := tbl.AllocFrame()
	tbl.Add(2, 0x2000, f2, false)

	// Add() leaves FlagRef set on both entries; re-touch f1 via Lookup so
	// its bit is freshly set, then evict. f2 was never looked up again and
	// should still be reachable with its bit set from Add, so the clock
	// must make at least one full pass clearing bits before resolving.
	tbl.Lookup(1, 0x1000)

	frame, _, _, ok := tbl.GetVictim()
	if !ok {
		t.Fatal("GetVictim: expected a victim among two referenced frames")
	}
	if frame != f1 && frame != f2 {
		t.Fatalf("GetVictim: got unexpected frame %d", frame)
	}
}

func TestFreeByPid(t *testing.T) {
	tbl := New(4)
	f1, _ := tbl.AllocFrame()
	tbl.Add(1, 0x1000, f1, false)
	f2, _ := tbl.AllocFrame()
	tbl.Add(1, 0x2000, f2, false)
	f3, _ := tbl.AllocFrame()
	tbl.Add(2, 0x1000, f3, false)

	tbl.FreeByPid(1)

	if got := tbl.Lookup(1, 0x1000); got != defs.NoFrame {
		t.Fatal("FreeByPid: pid 1 entry still resolvable")
	}
	if got := tbl.Lookup(1, 0x2000); got != defs.NoFrame {
		t.Fatal("FreeByPid: pid 1 entry still resolvable")
	}
	if got := tbl.Lookup(2, 0x1000); got != f3 {
		t.Fatal("FreeByPid: pid 2 entry wrongly cleared")
	}
}
