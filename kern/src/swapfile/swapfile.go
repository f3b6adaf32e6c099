// Package swapfile implements a fixed-size backing store of page-sized
// slots on a swap device, with first-fit bitmap slot allocation and a
// (pid, vaddr) -> slot metadata table (reusing the hashtable package, the
// same way the inverted page table does).
//
// Device I/O goes through unix.Pread/unix.Pwrite at page-granularity
// offsets. Concurrent outstanding I/O is bounded with a weighted
// semaphore, acquired only around the Pread/Pwrite call itself and never
// while the bitmap/metadata lock is held.
package swapfile

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"defs"
	"hashtable"
)

// / File_t is the swap file: nslots page-sized slots on a single
// / SWAPFILE-equivalent device.
type File_t struct {
	mu       sync.Mutex
	bitmap   []bool
	owner    []hashtable.Key
	meta     *hashtable.Table_t // (pid, vaddr) -> slot index
	fd       int
	pagesize int
	sem      *semaphore.Weighted
}

// / Open creates (or truncates) the backing file at path, sized for
// / nslots pages of pagesize bytes, and returns a ready File_t. ioConcurrency
// / bounds the number of outstanding Pread/Pwrite calls.
func Open(path string, nslots, pagesize int, ioConcurrency int64) (*File_t, error) {
	if nslots <= 0 || pagesize <= 0 {
		panic("swapfile: nslots and pagesize must be positive")
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	if err := unix.Ftruncate(fd, int64(nslots)*int64(pagesize)); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &File_t{
		bitmap:   make([]bool, nslots),
		owner:    make([]hashtable.Key, nslots),
		meta:     hashtable.New(2 * nslots),
		fd:       fd,
		pagesize: pagesize,
		sem:      semaphore.NewWeighted(ioConcurrency),
	}, nil
}

// / Close releases the underlying file descriptor.
func (f *File_t) Close() error {
	return unix.Close(f.fd)
}

func (f *File_t) allocSlot(key hashtable.Key) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, used := range f.bitmap {
		if !used {
			f.bitmap[i] = true
			f.owner[i] = key
			return i, true
		}
	}
	return 0, false
}

func (f *File_t) freeSlotLocked(slot int) {
	f.bitmap[slot] = false
	f.owner[slot] = hashtable.Key{}
}

// / SwapOut writes the contents of frame (exactly pagesize bytes) to a
// / free slot and records (pid, vaddr) -> slot. Code segment pages are
// / discarded rather than written, since they can always be re-read from
// / the ELF image. Returns defs.ESWAPFULL if no slot is free, defs.EIO on
// / a device error.
func (f *File_t) SwapOut(ctx context.Context, pid defs.Pid_t, vaddr defs.Vaddr_t, seg defs.Segment_t, frame []byte) defs.Err_t {
	if len(frame) != f.pagesize {
		panic("swapfile: SwapOut frame size mismatch")
	}
	if seg == defs.SegCode {
		return 0
	}

	key := hashtable.Key{Pid: pid, Vaddr: vaddr}
	slot, ok := f.allocSlot(key)
	if !ok {
		return defs.ESWAPFULL
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		f.mu.Lock()
		f.freeSlotLocked(slot)
		f.mu.Unlock()
		return defs.EIO
	}
	_, err := unix.Pwrite(f.fd, frame, int64(slot)*int64(f.pagesize))
	f.sem.Release(1)
	if err != nil {
		f.mu.Lock()
		f.freeSlotLocked(slot)
		f.mu.Unlock()
		return defs.EIO
	}

	f.mu.Lock()
	insErr := f.meta.Insert(key, slot)
	f.mu.Unlock()
	if insErr != 0 {
		// A page can never be simultaneously resident and on disk; a
		// duplicate insert here means a caller swapped out a page that
		// was already on disk.
		panic("swapfile: duplicate swap-out of resident (pid, vaddr)")
	}
	return 0
}

// / SwapIn reads the slot recorded for (pid, vaddr) into dst (exactly
// / pagesize bytes) and frees the slot. found is false when no swap
// / record exists, in which case dst is left untouched and the caller
// / must source the page elsewhere (ELF image or zero-fill).
func (f *File_t) SwapIn(ctx context.Context, pid defs.Pid_t, vaddr defs.Vaddr_t, dst []byte) (found bool, errk defs.Err_t) {
	if len(dst) != f.pagesize {
		panic("swapfile: SwapIn dst size mismatch")
	}
	key := hashtable.Key{Pid: pid, Vaddr: vaddr}

	f.mu.Lock()
	slot, ok := f.meta.Lookup(key)
	f.mu.Unlock()
	if !ok {
		return false, 0
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return true, defs.EIO
	}
	_, err := unix.Pread(f.fd, dst, int64(slot)*int64(f.pagesize))
	f.sem.Release(1)
	if err != nil {
		return true, defs.EIO
	}

	f.mu.Lock()
	f.meta.Remove(key)
	f.freeSlotLocked(slot)
	f.mu.Unlock()
	return true, 0
}

// / FreePid releases every slot belonging to pid, called at process exit.
func (f *File_t) FreePid(pid defs.Pid_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, used := range f.bitmap {
		if used && f.owner[i].Pid == pid {
			f.meta.Remove(f.owner[i])
			f.freeSlotLocked(i)
		}
	}
}

// / Allocated reports how many slots are currently in use, for tests.
func (f *File_t) Allocated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, used := range f.bitmap {
		if used {
			n++
		}
	}
	return n
}
