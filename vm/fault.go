package vm

import (
	"context"

	"github.com/hongfeiyang/OS161-VM/defs"
	"github.com/hongfeiyang/OS161-VM/mem"
)

// FaultType distinguishes the three hardware trap flavors the fault
// handler dispatches on.
type FaultType int

const (
	Read FaultType = iota
	Write
	ReadOnly
)

// HandleFault is the fault-handler entry point: (fault_type, fault_vaddr)
// -> 0 | errno. It retrieves the current address space from ctx, validates
// the address against the region list, resolves an existing or newly
// allocated PTE, and loads the result into the TLB.
func HandleFault(ctx context.Context, alloc FrameAllocator, typ FaultType, vaddr uintptr) defs.Err_t {
	if typ != Read && typ != Write && typ != ReadOnly {
		return defs.EINVAL
	}

	as, ok := FromContext(ctx)
	if !ok {
		return defs.EFAULT
	}
	as.Stats.Faults.Inc()

	region := as.Regions.Find(vaddr)
	if region == nil {
		as.Stats.BadAddress.Inc()
		return defs.EFAULT
	}

	switch typ {
	case Read:
		if !region.Readable {
			as.Stats.BadAddress.Inc()
			return defs.EFAULT
		}
	case Write, ReadOnly:
		if !region.Writable && !as.forceReadWrite {
			as.Stats.BadAddress.Inc()
			return defs.EFAULT
		}
	}

	page := roundDown(vaddr, mem.PGSIZE)
	pte := as.Table.Lookup(page)

	if pte != nil {
		as.Stats.Minor.Inc()
		if typ == ReadOnly {
			np, err := pte.cowCopy()
			if err != nil {
				as.Stats.OutOfMemory.Inc()
				return err.(defs.Err_t)
			}
			if np != pte {
				as.Stats.CowCopies.Inc()
				as.Table.AddEntry(page, np)
			} else {
				as.Stats.CowFast.Inc()
			}
			pte = np
		}
		as.TLB.Load(page, pte.Frame(), pte.Writable(), as.forceReadWrite)
		return 0
	}

	as.Stats.Major.Inc()
	writable := region.Writable
	var shared bool
	switch region.Type {
	case Unnamed, Heap, File:
		shared = true
	case Stack:
		shared = false
	default:
		return defs.ENOSYS
	}

	np, err := newPte(alloc, writable, shared)
	if err != nil {
		as.Stats.OutOfMemory.Inc()
		return err.(defs.Err_t)
	}

	if region.Type == File {
		off := region.FileOffset + int64(page-region.Vbase)
		pg := alloc.Page(np.frame)
		var ioErr error
		if typ == Write {
			ioErr = region.File.WritePage(off, pg)
		} else {
			ioErr = region.File.ReadPage(off, pg)
		}
		if ioErr != nil {
			np.destroy()
			return defs.EIO
		}
	}

	as.Table.AddEntry(page, np)
	as.TLB.Load(page, np.Frame(), np.Writable(), as.forceReadWrite)
	return 0
}
