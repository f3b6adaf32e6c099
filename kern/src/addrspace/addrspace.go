// Package addrspace implements per-process segment descriptors (code,
// data, stack), address classification, and the ELF-page load helper.
package addrspace

import (
	"defs"
	"util"
)

// / ElfReader is the external collaborator consumed from the ELF-parsing
// / / VFS layer: a page-granularity read of a loadable segment's backing
// / file contents. Parsing the ELF image itself is out of scope here.
type ElfReader interface {
	ReadSegment(seg defs.Segment_t, offset int, dest []byte) defs.Err_t
}

// / SegmentDesc_t describes one loadable ELF segment: its virtual base,
// / page count, and ELF-file source extents.
type SegmentDesc_t struct {
	Vbase  defs.Vaddr_t
	Npages int
	Foff   int
	Filesz int
	Memsz  int
}

func (s SegmentDesc_t) top(pagesize int) defs.Vaddr_t {
	return s.Vbase + defs.Vaddr_t(s.Npages*pagesize)
}

// / AS_t is a process's address space: two loadable segments and a fixed
// / stack region immediately below UserStack.
type AS_t struct {
	Code       SegmentDesc_t
	Data       SegmentDesc_t
	UserStack  defs.Vaddr_t
	StackPages int
	PageSize   int
	Elf        ElfReader
}

// / New validates and constructs an address space. It rejects overlapping
// / segments at construction time.
func New(code, data SegmentDesc_t, userStack defs.Vaddr_t, stackPages, pageSize int, elf ElfReader) (*AS_t, defs.Err_t) {
	if !util.PageAligned(code.Vbase, defs.Vaddr_t(pageSize)) || !util.PageAligned(data.Vbase, defs.Vaddr_t(pageSize)) {
		panic("addrspace: segment base not page-aligned")
	}
	if code.Npages == 0 || data.Npages == 0 {
		panic("addrspace: segment with zero pages")
	}
	stackBase := userStack - defs.Vaddr_t(stackPages*pageSize)

	overlaps := func(aBase, aTop, bBase, bTop defs.Vaddr_t) bool {
		return aBase < bTop && bBase < aTop
	}
	codeTop := code.top(pageSize)
	dataTop := data.top(pageSize)
	if overlaps(code.Vbase, codeTop, data.Vbase, dataTop) ||
		overlaps(code.Vbase, codeTop, stackBase, userStack) ||
		overlaps(data.Vbase, dataTop, stackBase, userStack) {
		return nil, defs.EFAULT
	}

	return &AS_t{
		Code:       code,
		Data:       data,
		UserStack:  userStack,
		StackPages: stackPages,
		PageSize:   pageSize,
		Elf:        elf,
	}, 0
}

// / AddressSegment classifies a page-aligned address against the code,
// / data, and stack regions. Code is checked first, then data, then the
// / stack, so a malformed overlapping address space (which New already
// / rejects) would still resolve deterministically.
func (as *AS_t) AddressSegment(vaddr defs.Vaddr_t) (defs.Segment_t, defs.Err_t) {
	codeTop := as.Code.top(as.PageSize)
	dataTop := as.Data.top(as.PageSize)
	stackBase := as.UserStack - defs.Vaddr_t(as.StackPages*as.PageSize)

	switch {
	case vaddr >= as.Code.Vbase && vaddr < codeTop:
		return defs.SegCode, 0
	case vaddr >= as.Data.Vbase && vaddr < dataTop:
		return defs.SegData, 0
	case vaddr >= stackBase && vaddr < as.UserStack:
		return defs.SegStack, 0
	default:
		return 0, defs.EFAULT
	}
}

func (as *AS_t) segment(seg defs.Segment_t) SegmentDesc_t {
	switch seg {
	case defs.SegCode:
		return as.Code
	case defs.SegData:
		return as.Data
	default:
		panic("addrspace: LoadPage called for a non-ELF segment")
	}
}

// / LoadPage reads exactly one page of the ELF image for the code or data
// / segment containing vaddr into dst (len(dst) == page size). filesz <
// / memsz is honored by zero-padding the tail: bytes beyond the segment's
// / on-disk size are zeroed rather than read. The stack segment must
// / never be passed here; stack pages are zero-filled in place by the
// / fault handler.
func (as *AS_t) LoadPage(vaddr defs.Vaddr_t, seg defs.Segment_t, dst []byte) defs.Err_t {
	if seg == defs.SegStack {
		panic("addrspace: LoadPage called for the stack segment")
	}
	if len(dst) != as.PageSize {
		panic("addrspace: LoadPage dst size mismatch")
	}
	sd := as.segment(seg)
	offset := int(vaddr - sd.Vbase)

	readable := sd.Filesz - offset
	if readable < 0 {
		readable = 0
	}
	if readable > len(dst) {
		readable = len(dst)
	}
	for i := readable; i < len(dst); i++ {
		dst[i] = 0
	}
	if readable == 0 {
		return 0
	}
	return as.Elf.ReadSegment(seg, sd.Foff+offset, dst[:readable])
}
