// Package vm is the virtual-memory core: page-table entries, the two-level
// page table, region lists, address spaces, and the fault handler. It
// consumes a frame allocator and a TLB loader as external collaborators and
// exposes the fault-handler entry point trap dispatch calls into.
package vm

import (
	"sync"

	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/lockdebug"
	"github.com/hongfeiyang/OS161-VM/mem"
)

// FrameAllocator is the alloc_kpages/free_kpages collaborator. pmm.Allocator
// satisfies it; tests may supply a fake with a tiny frame budget to exercise
// OUT_OF_MEMORY paths deterministically.
type FrameAllocator interface {
	Alloc() (mem.Pa_t, bool)
	Free(mem.Pa_t)
	Zero(mem.Pa_t)
	Page(mem.Pa_t) *mem.Pg_t
}

// Pte_t is the owning handle for one mapped physical frame. The frame
// address and the hardware control bits are kept as separate typed fields
// rather than OR-ed together, per the documented fix for the recurring
// mask/unmask bugs that plagued the source this core was distilled from;
// they are handed to the TLB together at load time and stay separate
// fields there too.
type Pte_t struct {
	mu sync.Mutex

	frame    mem.Pa_t
	writable bool
	shared   bool
	refCount int32

	alloc FrameAllocator
}

func (p *Pte_t) lock() func() {
	exit := lockdebug.Enter(lockdebug.Entry)
	p.mu.Lock()
	return func() {
		p.mu.Unlock()
		exit()
	}
}

// Frame returns the physical frame backing this entry.
func (p *Pte_t) Frame() mem.Pa_t {
	defer p.lock()()
	return p.frame
}

// Writable reports whether writes to this entry's frame are currently
// permitted by the hardware bit this PTE will marshal at TLB-load time.
func (p *Pte_t) Writable() bool {
	defer p.lock()()
	return p.writable
}

// Shared reports whether this entry participates in COW sharing across
// fork. Text/data/heap/file-backed regions set this; stack does not.
func (p *Pte_t) Shared() bool {
	defer p.lock()()
	return p.shared
}

// RefCount returns the current number of page-table slots referencing this
// entry. It is intended for tests and diagnostics, not for synchronization.
func (p *Pte_t) RefCount() int32 {
	defer p.lock()()
	return p.refCount
}

// newPte allocates one zeroed frame and wraps it in a fresh entry with
// ref_count 1. It fails with OUT_OF_MEMORY if the allocator's budget is
// exhausted.
func newPte(alloc FrameAllocator, writable, shared bool) (*Pte_t, error) {
	frame, ok := alloc.Alloc()
	if !ok {
		return nil, defs.ENOMEM
	}
	alloc.Zero(frame)
	return &Pte_t{
		frame:    frame,
		writable: writable,
		shared:   shared,
		refCount: 1,
		alloc:    alloc,
	}, nil
}

// incRef bumps the sharer count and clears the writable bit: the point at
// which a page becomes effectively read-only in every sharer. Callers must
// hold the source page table's lock so that no concurrent fault can observe
// an intermediate state.
func (p *Pte_t) incRef() {
	defer p.lock()()
	if p.refCount < 1 {
		panic("vm: incRef on dead pte")
	}
	p.refCount++
	p.writable = false
}

// decRef drops one reference. If other sharers remain it merely decrements;
// otherwise it tears the entry down. This is the "if ref_count > 1,
// decrement; else destroy" form — never decrement-then-separately-free,
// which double-frees the frame.
func (p *Pte_t) decRef() {
	unlock := p.lock()
	if p.refCount > 1 {
		p.refCount--
		unlock()
		return
	}
	unlock()
	p.destroy()
}

// destroy zero-fills the page, returns the frame to the allocator, and
// leaves the entry unusable. Precondition: ref_count == 1; callers reach
// this through decRef, which has already checked that, or directly on a
// fresh entry that was never installed (the fault handler's I/O-error path).
func (p *Pte_t) destroy() {
	unlock := p.lock()
	if p.refCount != 1 {
		unlock()
		panic("vm: destroy of pte with ref_count != 1")
	}
	frame := p.frame
	p.refCount = 0
	unlock()

	p.alloc.Zero(frame)
	p.alloc.Free(frame)
}

// copy deep-copies the page contents into a freshly allocated frame and
// carries over the control bits, independent of ref_count. Used by the
// page-table copy path for non-shared (stack) entries.
func (p *Pte_t) copy() (*Pte_t, error) {
	defer p.lock()()

	dst, ok := p.alloc.Alloc()
	if !ok {
		return nil, defs.ENOMEM
	}
	*p.alloc.Page(dst) = *p.alloc.Page(p.frame)
	return &Pte_t{
		frame:    dst,
		writable: p.writable,
		shared:   p.shared,
		refCount: 1,
		alloc:    p.alloc,
	}, nil
}

// cowCopy implements the write-fault-on-shared-page protocol. If this is
// the last sharer it flips the writable bit in place and returns itself
// (the fast path: no allocation). Otherwise it allocates a private copy,
// marks it writable, decrements the source's ref_count, and returns the
// new entry. The caller installs the returned entry into the faulting
// slot via add_entry.
func (p *Pte_t) cowCopy() (*Pte_t, error) {
	unlock := p.lock()
	if p.refCount == 1 {
		p.writable = true
		unlock()
		return p, nil
	}
	frame := p.frame
	shared := p.shared
	unlock()

	dst, ok := p.alloc.Alloc()
	if !ok {
		return nil, defs.ENOMEM
	}
	*p.alloc.Page(dst) = *p.alloc.Page(frame)

	np := &Pte_t{
		frame:    dst,
		writable: true,
		shared:   shared,
		refCount: 1,
		alloc:    p.alloc,
	}
	p.decRef()
	return np, nil
}
