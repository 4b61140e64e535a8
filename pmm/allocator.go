package pmm

import (
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hongfeiyang/OS161-VM/mem"
	"github.com/hongfeiyang/OS161-VM/oom"
)

// freeIdx is a sentinel meaning "no next frame" in the free list, mirroring
// biscuit's use of ^uint32(0) as a list terminator.
const freeIdx = ^uint32(0)

// Allocator hands out page-aligned physical frames from a fixed-size
// arena. Free frames are threaded into a singly linked list through their
// own bytes (the first four bytes of a free frame hold the index of the
// next free frame), so no separate bookkeeping array is needed (biscuit's
// Physmem_t instead keeps its links in a side array). A counting semaphore caps how many frames
// may be outstanding at once, which is what lets tests exercise
// OUT_OF_MEMORY deterministically.
type Allocator struct {
	arena   arena
	mu      sync.Mutex
	free    uint32 // index of first free frame, or freeIdx
	nframes int

	budget *semaphore.Weighted
}

// New creates an allocator backed by nframes page-sized frames.
func New(nframes int) (*Allocator, error) {
	ar, err := newArena(nframes)
	if err != nil {
		return nil, err
	}
	a := &Allocator{
		arena:   ar,
		nframes: nframes,
		budget:  semaphore.NewWeighted(int64(nframes)),
	}
	a.free = 0
	buf := a.arena.bytes()
	for i := 0; i < nframes; i++ {
		var next uint32
		if i == nframes-1 {
			next = freeIdx
		} else {
			next = uint32(i + 1)
		}
		putNextIdx(buf[i*mem.PGSIZE:], next)
	}
	return a, nil
}

// Close releases the backing arena. It is intended for use by tests that
// spin up many allocators and want to avoid leaking mmap'd regions.
func (a *Allocator) Close() error {
	return a.arena.close()
}

func putNextIdx(frame []byte, idx uint32) {
	frame[0] = byte(idx)
	frame[1] = byte(idx >> 8)
	frame[2] = byte(idx >> 16)
	frame[3] = byte(idx >> 24)
}

func getNextIdx(frame []byte) uint32 {
	return uint32(frame[0]) | uint32(frame[1])<<8 | uint32(frame[2])<<16 | uint32(frame[3])<<24
}

// Alloc reserves one physical frame and returns its address. It fails with
// ok == false, and notifies oom.Ch, when the frame budget is exhausted.
// Allocation never blocks: a fault handler that cannot get a frame must
// fail the fault immediately rather than stall the faulting thread.
func (a *Allocator) Alloc() (mem.Pa_t, bool) {
	if !a.budget.TryAcquire(1) {
		oom.Notify(1)
		return 0, false
	}
	a.mu.Lock()
	idx := a.free
	if idx == freeIdx {
		a.mu.Unlock()
		a.budget.Release(1)
		oom.Notify(1)
		return 0, false
	}
	frame := a.frameBytes(idx)
	a.free = getNextIdx(frame)
	a.mu.Unlock()
	return a.idxToPa(idx), true
}

// Free returns a frame to the pool. Callers must ensure the frame is not
// referenced by any live PTE before calling this (ref-count bookkeeping
// lives in the vm package, not here).
func (a *Allocator) Free(p mem.Pa_t) {
	idx := a.paToIdx(p)
	frame := a.frameBytes(idx)
	a.mu.Lock()
	putNextIdx(frame, a.free)
	a.free = idx
	a.mu.Unlock()
	a.budget.Release(1)
}

// Zero clears a frame's contents. The fault handler uses this to hand out
// zero-filled pages for anonymous mappings.
func (a *Allocator) Zero(p mem.Pa_t) {
	frame := a.frameBytes(a.paToIdx(p))
	for i := range frame {
		frame[i] = 0
	}
}

// Page returns a pointer to the frame's contents, analogous to the
// kernel-virtual alias a real kernel would dereference after the frame
// allocator hands back a physical address.
func (a *Allocator) Page(p mem.Pa_t) *mem.Pg_t {
	return (*mem.Pg_t)(a.frameBytes(a.paToIdx(p)))
}

func (a *Allocator) frameBytes(idx uint32) []byte {
	off := int(idx) * mem.PGSIZE
	return a.arena.bytes()[off : off+mem.PGSIZE]
}

func (a *Allocator) idxToPa(idx uint32) mem.Pa_t {
	return mem.Pa_t(int(idx) * mem.PGSIZE)
}

func (a *Allocator) paToIdx(p mem.Pa_t) uint32 {
	return uint32(int(p) / mem.PGSIZE)
}
