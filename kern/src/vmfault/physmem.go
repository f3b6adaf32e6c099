package vmfault

import "defs"

// / PhysMem_t is the raw byte-addressable RAM backing every physical
// / frame. Frame 0 is never handed out by ipt.Table_t.AllocFrame; it is
// / the reserved non-resident sentinel.
type PhysMem_t struct {
	pagesize int
	frames   [][]byte
}

// / NewPhysMem allocates nframes zero-filled page buffers.
func NewPhysMem(nframes, pagesize int) *PhysMem_t {
	frames := make([][]byte, nframes+1)
	for i := range frames {
		frames[i] = make([]byte, pagesize)
	}
	return &PhysMem_t{pagesize: pagesize, frames: frames}
}

// / Frame returns the byte slice backing the given physical frame.
func (p *PhysMem_t) Frame(f defs.Frame_t) []byte {
	return p.frames[f]
}
