// Command vmsim drives the VM fault handler against a small synthetic
// fault trace, outside of a booted kernel.
package main

import (
	"fmt"
	"os"

	"addrspace"
	"defs"
	"swapfile"
	"vmfault"
)

const (
	pageSize   = 4096
	numTLB     = 4
	stackPages = 18
	nframes    = 4
	swapSlots  = 4
)

// fakeElf stands in for the external ELF-image reader: it fabricates
// deterministic bytes so the demo trace can load pages without a real
// executable on disk.
type fakeElf struct{}

func (fakeElf) ReadSegment(seg defs.Segment_t, offset int, dest []byte) defs.Err_t {
	for i := range dest {
		dest[i] = byte(int(seg)*64 + (offset+i)%251)
	}
	return 0
}

// fakeHost stands in for the process-lifecycle collaborator: current
// process lookup, per-pid address spaces, and the exit hook fatal errors
// call.
type fakeHost struct {
	current defs.Pid_t
	as      map[defs.Pid_t]*addrspace.AS_t
	exited  map[defs.Pid_t]int
}

func newFakeHost() *fakeHost {
	return &fakeHost{as: map[defs.Pid_t]*addrspace.AS_t{}, exited: map[defs.Pid_t]int{}}
}

func (h *fakeHost) CurrentPid() (defs.Pid_t, bool) {
	if _, exited := h.exited[h.current]; exited {
		return 0, false
	}
	return h.current, true
}

func (h *fakeHost) CurrentAS() (*addrspace.AS_t, bool) {
	as, ok := h.as[h.current]
	return as, ok
}

func (h *fakeHost) GetAS(pid defs.Pid_t) (*addrspace.AS_t, bool) {
	as, ok := h.as[pid]
	return as, ok
}

func (h *fakeHost) Exit(pid defs.Pid_t, code int) {
	fmt.Printf("process %d exited with code %d\n", pid, code)
	h.exited[pid] = code
}

func mkAS(elf addrspace.ElfReader) *addrspace.AS_t {
	code := addrspace.SegmentDesc_t{Vbase: 0x400000, Npages: 2, Foff: 0, Filesz: pageSize + 100, Memsz: 2 * pageSize}
	data := addrspace.SegmentDesc_t{Vbase: 0x500000, Npages: 2, Foff: pageSize + 100, Filesz: pageSize, Memsz: 2 * pageSize}
	userStack := defs.Vaddr_t(0x80000000)
	as, err := addrspace.New(code, data, userStack, stackPages, pageSize, elf)
	if err != 0 {
		panic("vmsim: bad address space layout")
	}
	return as
}

func main() {
	swap, err := swapfile.Open(os.Args[0]+".swap", swapSlots, pageSize, 2)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vmsim: opening swap file:", err)
		os.Exit(1)
	}
	defer swap.Close()
	defer os.Remove(os.Args[0] + ".swap")

	host := newFakeHost()
	elf := fakeElf{}
	host.as[1] = mkAS(elf)
	host.as[2] = mkAS(elf)

	cfg := vmfault.Config{NumTLB: numTLB, StackPages: stackPages, PageSize: pageSize}
	ctx := vmfault.NewContext(cfg, nframes, host, swap)

	trace := []struct {
		pid   defs.Pid_t
		kind  defs.FaultType_t
		vaddr defs.Vaddr_t
		label string
	}{
		{1, defs.FaultRead, 0x400100, "P1 cold code fault"},
		{1, defs.FaultReadOnly, 0x400100, "P1 write to code (fatal)"},
	}

	for _, step := range trace {
		host.current = step.pid
		ret := ctx.VMFault(step.kind, step.vaddr)
		fmt.Printf("%-32s pid=%d vaddr=%#x -> %d\n", step.label, step.pid, step.vaddr, ret)
	}

	fmt.Println(ctx.Stats().String())
}
