package vm

import (
	"context"

	"github.com/hongfeiyang/OS161-VM/limits"
	"github.com/hongfeiyang/OS161-VM/mem"
	"github.com/hongfeiyang/OS161-VM/procctx"
	"github.com/hongfeiyang/OS161-VM/stats"
	"github.com/hongfeiyang/OS161-VM/tlb"
	"github.com/hongfeiyang/OS161-VM/vfs"
)

// Userstack is the highest user-addressable page: the top of the region
// this model's 32-bit virtual address space reserves for the stack.
const Userstack uintptr = 0x80000000 - mem.PGSIZE

// StackPages is the fixed size of the initial stack region.
const StackPages = 18

// AddressSpace binds a region list with a page table, the force_readwrite
// flag ELF loading asserts, and the cached heap/stack bases the heap and
// mmap operations consult.
type AddressSpace struct {
	Regions *RegionList
	Table   *PageTable
	TLB     *tlb.TLB

	// Stats counts this address space's fault-handler events. It is never
	// nil: New and Copy both allocate one.
	Stats *stats.VM

	forceReadWrite bool
	heapStart      uintptr
	stackStart     uintptr

	alloc   FrameAllocator
	limits  *limits.PerAddrspace
	watcher *vfs.Watcher
}

// New creates an empty address space: no regions, no mappings.
func New(alloc FrameAllocator) *AddressSpace {
	return &AddressSpace{
		Regions: &RegionList{},
		Table:   NewPageTable(),
		TLB:     tlb.New(),
		Stats:   &stats.VM{},
		alloc:   alloc,
		limits:  limits.DefaultLimits(),
	}
}

// Copy builds a fork child: the region list is deep-copied, the page table
// is COW-copied (shareable entries inc_ref'd, stack entries deep-copied),
// and force_readwrite/heap_start/stack_start are inherited verbatim. The
// child gets its own Stats and starts with file watching disabled even if
// the parent had it enabled.
func (as *AddressSpace) Copy() (*AddressSpace, error) {
	table, err := as.Table.Copy()
	if err != nil {
		return nil, err
	}
	return &AddressSpace{
		Regions:        as.Regions.Copy(),
		Table:          table,
		TLB:            tlb.New(),
		Stats:          &stats.VM{},
		forceReadWrite: as.forceReadWrite,
		heapStart:      as.heapStart,
		stackStart:     as.stackStart,
		alloc:          as.alloc,
		limits:         limits.DefaultLimits(),
	}, nil
}

// Destroy tears down the region list then the page table: regions may
// reference frames indirectly through FILE handles, but only PTEs own the
// frames themselves, so the table must go last.
func (as *AddressSpace) Destroy() {
	as.Regions = &RegionList{}
	as.Table.Destroy()
	if as.watcher != nil {
		as.watcher.Close()
		as.watcher = nil
	}
}

// EnableFileWatch starts watching every FILE region's backing path for
// external modification and arranges for future Mmap calls to register
// their paths too. Calling it more than once is a no-op.
func (as *AddressSpace) EnableFileWatch() error {
	if as.watcher != nil {
		return nil
	}
	w, err := vfs.NewWatcher()
	if err != nil {
		return err
	}
	as.watcher = w
	for _, r := range as.Regions.All() {
		as.watchFileRegion(r)
	}
	return nil
}

// watchFileRegion registers r's backing path with the active watcher, if
// any. It is a no-op before EnableFileWatch or for non-FILE regions.
func (as *AddressSpace) watchFileRegion(r *Region) {
	if as.watcher == nil || r.Type != File {
		return
	}
	as.watcher.Watch(r.File.Path())
}

// InvalidateChangedFiles drains pending external-modification notices and
// evicts every PTE belonging to a FILE region whose backing path changed,
// so the next access refaults and re-reads the file from disk instead of
// serving stale page content. It returns the number of pages evicted, and
// is a no-op until EnableFileWatch has been called.
func (as *AddressSpace) InvalidateChangedFiles() int {
	if as.watcher == nil {
		return 0
	}
	changed := map[string]bool{}
	for drained := false; !drained; {
		select {
		case ev := <-as.watcher.Events():
			changed[ev.Path] = true
		default:
			drained = true
		}
	}
	if len(changed) == 0 {
		return 0
	}
	n := 0
	for _, r := range as.Regions.All() {
		if r.Type != File || !changed[r.File.Path()] {
			continue
		}
		for va := r.Vbase; va < r.Vtop; va += uintptr(mem.PGSIZE) {
			if pte := as.Table.RemoveEntry(va); pte != nil {
				pte.decRef()
				n++
			}
		}
	}
	if n > 0 {
		as.TLB.FlushAll()
	}
	return n
}

// Activate flushes the TLB. This model carries no address-space
// identifiers, so every context switch invalidates every entry.
func (as *AddressSpace) Activate() {
	as.TLB.FlushAll()
}

// Deactivate also flushes the TLB, for the same reason.
func (as *AddressSpace) Deactivate() {
	as.TLB.FlushAll()
}

// DefineRegion aligns vaddr down and size up to page granularity and
// appends an UNNAMED region with the given permissions. Returns the
// aligned base.
func (as *AddressSpace) DefineRegion(vaddr uintptr, size int, readable, writable, executable bool) uintptr {
	base := roundDown(vaddr, mem.PGSIZE)
	top := roundUp(vaddr+uintptr(size), mem.PGSIZE)
	npages := int((top - base) / uintptr(mem.PGSIZE))

	as.Regions.Insert(&Region{
		Vbase:      base,
		Vtop:       top,
		Npages:     npages,
		Readable:   readable,
		Writable:   writable,
		Executable: executable,
		Type:       Unnamed,
	})
	return base
}

// HeapStart returns the cached virtual base of the heap region.
func (as *AddressSpace) HeapStart() uintptr {
	return as.heapStart
}

// StackStart returns the cached virtual base of the stack region.
func (as *AddressSpace) StackStart() uintptr {
	return as.stackStart
}

// ForceReadWrite reports whether ELF-load permission overrides are active.
func (as *AddressSpace) ForceReadWrite() bool {
	return as.forceReadWrite
}

// PrepareLoad sets force_readwrite so ELF segment loading can write into
// segments that will end up read-only at runtime.
func (as *AddressSpace) PrepareLoad() {
	as.forceReadWrite = true
}

// CompleteLoad clears force_readwrite once loading has finished.
func (as *AddressSpace) CompleteLoad() {
	as.forceReadWrite = false
}

// DefineStack writes Userstack to *stackptr, allocates a one-page HEAP
// region immediately above the topmost existing region and an
// StackPages-page STACK region ending at Userstack, sorts the region list,
// and asserts the no-overlap invariant. It caches heap_start and
// stack_start for sbrk/mmap bookkeeping.
func (as *AddressSpace) DefineStack(stackptr *uintptr) bool {
	*stackptr = Userstack

	top := as.topOfRegions()
	heapBase := top
	heapTop := heapBase + uintptr(mem.PGSIZE)
	as.Regions.Insert(&Region{
		Vbase:    heapBase,
		Vtop:     heapTop,
		Npages:   1,
		Readable: true, Writable: true,
		Type: Heap,
	})

	stackBase := Userstack - uintptr(StackPages*mem.PGSIZE)
	as.Regions.Insert(&Region{
		Vbase:    stackBase,
		Vtop:     Userstack,
		Npages:   StackPages,
		Readable: true, Writable: true,
		Type: Stack,
	})

	as.Regions.Sort()
	if !as.Regions.CheckOverlap() {
		return false
	}
	as.heapStart = heapBase
	as.stackStart = stackBase
	return true
}

func (as *AddressSpace) topOfRegions() uintptr {
	var top uintptr
	for _, r := range as.Regions.All() {
		if r.Vtop > top {
			top = r.Vtop
		}
	}
	return top
}

// roundDown clamps v to the page boundary at or below it.
func roundDown(v uintptr, align int) uintptr {
	a := uintptr(align)
	return v - (v % a)
}

// roundUp clamps v to the page boundary at or above it.
func roundUp(v uintptr, align int) uintptr {
	a := uintptr(align)
	return roundDown(v+a-1, a)
}

// FromContext retrieves the address space installed by procctx.With, the
// way the fault handler's collaborator contract expects to find "the
// current process".
func FromContext(ctx context.Context) (*AddressSpace, bool) {
	v, ok := procctx.From(ctx)
	if !ok {
		return nil, false
	}
	as, ok := v.(*AddressSpace)
	return as, ok
}
