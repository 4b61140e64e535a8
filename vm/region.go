package vm

import (
	"sort"

	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/mem"
)

// RegionType tags what backs a region's pages.
type RegionType int

const (
	Unnamed RegionType = iota
	Heap
	Stack
	File
)

// Region is a contiguous, page-aligned virtual range with uniform
// permissions. FILE regions additionally carry the file handle and byte
// offset the fault handler reads/writes against.
//
// The source kept these in a cyclic doubly-linked list; the prev-link
// existed only for O(1) removal in munmap. A slice gives the same ordered
// scan and sort behavior with far less bookkeeping, so that is what this
// core uses (see DESIGN.md for the rationale).
type Region struct {
	Vbase, Vtop uintptr
	Npages      int

	Readable, Writable, Executable bool
	Type                           RegionType

	File       FileVnode
	FileOffset int64
}

func (r *Region) contains(vaddr uintptr) bool {
	return vaddr >= r.Vbase && vaddr < r.Vtop
}

// FileVnode is the minimal VFS surface a FILE region needs: page-sized
// reads and writes at a byte offset, plus the backing path so external
// modification can be watched. vfs.FileVnode implements it.
type FileVnode interface {
	ReadPage(off int64, page *mem.Pg_t) error
	WritePage(off int64, page *mem.Pg_t) error
	Path() string
}

// RegionList is the ordered, non-overlapping set of regions belonging to
// one address space.
type RegionList struct {
	regions []*Region
}

// Insert appends a region. Callers that need sorted order call Sort
// afterward; define_stack and the setup path do this once after all
// regions are known, matching the source's "append then sort" sequence.
func (l *RegionList) Insert(r *Region) {
	l.regions = append(l.regions, r)
}

// Remove unlinks r by identity.
func (l *RegionList) Remove(r *Region) {
	for i, c := range l.regions {
		if c == r {
			l.regions = append(l.regions[:i], l.regions[i+1:]...)
			return
		}
	}
}

// Find returns the region whose half-open range contains vaddr, or nil.
func (l *RegionList) Find(vaddr uintptr) *Region {
	for _, r := range l.regions {
		if r.contains(vaddr) {
			return r
		}
	}
	return nil
}

// FindByVbase returns the region whose base exactly matches vbase, or nil.
func (l *RegionList) FindByVbase(vbase uintptr) *Region {
	for _, r := range l.regions {
		if r.Vbase == vbase {
			return r
		}
	}
	return nil
}

// Copy deep-copies every region, preserving order. FILE regions share the
// underlying FileVnode (handles, not their backing pages, are duplicated).
func (l *RegionList) Copy() *RegionList {
	out := &RegionList{regions: make([]*Region, len(l.regions))}
	for i, r := range l.regions {
		cp := *r
		out.regions[i] = &cp
	}
	return out
}

// Sort orders regions by ascending Vbase. Sort + CheckOverlap are invoked
// together at the end of address-space setup.
func (l *RegionList) Sort() {
	sort.Slice(l.regions, func(i, j int) bool {
		return l.regions[i].Vbase < l.regions[j].Vbase
	})
}

// CheckOverlap asserts the no-overlap invariant on an already-sorted list.
func (l *RegionList) CheckOverlap() bool {
	for i := 1; i < len(l.regions); i++ {
		if l.regions[i].Vbase < l.regions[i-1].Vtop {
			return false
		}
	}
	return true
}

// All returns the regions in current order. Callers must not mutate the
// returned slice's backing array.
func (l *RegionList) All() []*Region {
	return l.regions
}

// AllocFileRegion reserves npages pages in the gap between the top of the
// heap and the region immediately below the stack, placed flush against
// that upper neighbour (the highest legal base). It fails with
// OUT_OF_MEMORY if the gap is insufficient.
func (l *RegionList) AllocFileRegion(heapTop uintptr, length int, readable, writable, executable bool, f FileVnode, offset int64) (*Region, error) {
	npages := (length + mem.PGSIZE - 1) / mem.PGSIZE
	size := uintptr(npages * mem.PGSIZE)

	l.Sort()
	ceiling := l.lowestBaseAbove(heapTop)

	if ceiling < heapTop || ceiling-heapTop < size {
		return nil, defs.ENOMEM
	}
	vbase := ceiling - size

	r := &Region{
		Vbase:      vbase,
		Vtop:       vbase + size,
		Npages:     npages,
		Readable:   readable,
		Writable:   writable,
		Executable: executable,
		Type:       File,
		File:       f,
		FileOffset: offset,
	}
	l.Insert(r)
	l.Sort()
	return r, nil
}

// lowestBaseAbove returns the vbase of the lowest region whose base is
// strictly above floor (the stack, in practice), or the top of the
// 32-bit address space if none exists.
func (l *RegionList) lowestBaseAbove(floor uintptr) uintptr {
	best := uintptr(1) << 32
	for _, r := range l.regions {
		if r.Vbase > floor && r.Vbase < best {
			best = r.Vbase
		}
	}
	return best
}
