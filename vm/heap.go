package vm

import (
	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/mem"
)

// Sbrk grows or shrinks the heap region by amount bytes (amount may be
// negative) and returns the previous break. amount == 0 just reports the
// current break. Growing rounds up to a page; shrinking rounds down. It
// fails with OUT_OF_MEMORY if the new break would fall below the heap
// base or collide with the region immediately above the heap.
func (as *AddressSpace) Sbrk(amount int) (uintptr, defs.Err_t) {
	heap := as.Regions.FindByVbase(as.heapStart)
	if heap == nil {
		return 0, defs.EFAULT
	}
	prevTop := heap.Vtop
	if amount == 0 {
		return prevTop, 0
	}

	var newTop uintptr
	if amount > 0 {
		newTop = roundUp(prevTop+uintptr(amount), mem.PGSIZE)
	} else {
		shrink := uintptr(-amount)
		if shrink > prevTop {
			newTop = 0
		} else {
			newTop = roundDown(prevTop-shrink, mem.PGSIZE)
		}
	}

	if newTop < as.heapStart {
		return 0, defs.ENOMEM
	}
	if ceiling, ok := as.nextRegionBase(heap); ok && newTop > ceiling {
		return 0, defs.ENOMEM
	}

	heap.Vtop = newTop
	heap.Npages = int((newTop - heap.Vbase) / uintptr(mem.PGSIZE))
	return prevTop, 0
}

// nextRegionBase returns the vbase of the region immediately above r, if
// any.
func (as *AddressSpace) nextRegionBase(r *Region) (uintptr, bool) {
	best := uintptr(0)
	found := false
	for _, c := range as.Regions.All() {
		if c == r {
			continue
		}
		if c.Vbase >= r.Vtop && (!found || c.Vbase < best) {
			best = c.Vbase
			found = true
		}
	}
	return best, found
}

// Mmap creates a FILE-backed region of length bytes, backed by f starting
// at byte offset offset, with the given permission bits. It rejects zero
// length or a non-page-aligned offset with INVALID_ARGUMENT, and returns
// the new region's base address.
func (as *AddressSpace) Mmap(length int, readable, writable, executable bool, f FileVnode, offset int64) (uintptr, defs.Err_t) {
	if length == 0 || offset%int64(mem.PGSIZE) != 0 {
		return 0, defs.EINVAL
	}
	if f == nil {
		return 0, defs.EBADF
	}
	if !as.limits.Regions.Take() {
		return 0, defs.ENOMEM
	}
	r, err := as.Regions.AllocFileRegion(as.topOfHeap(), length, readable, writable, executable, f, offset)
	if err != nil {
		as.limits.Regions.Give()
		return 0, err.(defs.Err_t)
	}
	as.watchFileRegion(r)
	return r.Vbase, 0
}

func (as *AddressSpace) topOfHeap() uintptr {
	if heap := as.Regions.FindByVbase(as.heapStart); heap != nil {
		return heap.Vtop
	}
	return as.heapStart
}

// Munmap looks up the region based at addr and rejects anything that is
// not an existing FILE region with INVALID_ARGUMENT. It eagerly dec_refs
// every PTE in [vbase, vtop), rather than deferring their release to
// address-space teardown, closing the leak the source's munmap left open.
func (as *AddressSpace) Munmap(addr uintptr) defs.Err_t {
	r := as.Regions.FindByVbase(addr)
	if r == nil || r.Type != File {
		return defs.EINVAL
	}
	for va := r.Vbase; va < r.Vtop; va += uintptr(mem.PGSIZE) {
		if pte := as.Table.RemoveEntry(va); pte != nil {
			pte.decRef()
		}
	}
	as.Regions.Remove(r)
	as.limits.Regions.Give()
	return 0
}
