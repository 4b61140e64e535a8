package vm

import (
	"sync"

	"github.com/hongfeiyang/OS161-VM/lockdebug"
)

const (
	l1Bits     = 11
	l2Bits     = 9
	offsetBits = 12

	l1Size = 1 << l1Bits
	l2Size = 1 << l2Bits
)

func l1Index(vaddr uintptr) int { return int(vaddr >> (l2Bits + offsetBits)) }
func l2Index(vaddr uintptr) int { return int((vaddr >> offsetBits) & (l2Size - 1)) }

// l2Table is the lower tier: a dense array of PTE slots plus a live count
// so the table can be freed once its last slot empties out.
type l2Table struct {
	slots [l2Size]*Pte_t
	count int
}

// PageTable is the per-address-space two-level translation structure. A
// single table-wide lock serializes lookup, insertion, and removal; PTE
// contents are separately guarded by each entry's own lock.
type PageTable struct {
	mu  sync.Mutex
	l1  [l1Size]*l2Table
}

// NewPageTable returns an empty page table.
func NewPageTable() *PageTable {
	return &PageTable{}
}

// Lookup returns the PTE mapping vaddr, or nil if no L1 slot, L2 table, or
// slot exists for it.
func (t *PageTable) Lookup(vaddr uintptr) *Pte_t {
	exit := lockdebug.Enter(lockdebug.Table)
	t.mu.Lock()
	defer exit()
	defer t.mu.Unlock()
	return t.lookupLocked(vaddr)
}

func (t *PageTable) lookupLocked(vaddr uintptr) *Pte_t {
	l2 := t.l1[l1Index(vaddr)]
	if l2 == nil {
		return nil
	}
	return l2.slots[l2Index(vaddr)]
}

// AddEntry installs pte at vaddr's slot, allocating the backing L2 table on
// first use. An existing non-nil slot is overwritten without touching its
// ref count — callers use this to atomically swap a shared PTE for a
// COW-split replacement, having already accounted for the old reference
// through their own call path (cowCopy's decRef, or remove_entry).
func (t *PageTable) AddEntry(vaddr uintptr, pte *Pte_t) {
	exit := lockdebug.Enter(lockdebug.Table)
	t.mu.Lock()
	defer exit()
	defer t.mu.Unlock()

	i1, i2 := l1Index(vaddr), l2Index(vaddr)
	l2 := t.l1[i1]
	if l2 == nil {
		l2 = &l2Table{}
		t.l1[i1] = l2
	}
	if l2.slots[i2] == nil {
		l2.count++
	}
	l2.slots[i2] = pte
}

// RemoveEntry nils the slot at vaddr and returns the PTE that was there, or
// nil if the slot was already empty. The caller is responsible for calling
// decRef on the returned entry. The backing L2 table is freed once its
// count reaches zero.
func (t *PageTable) RemoveEntry(vaddr uintptr) *Pte_t {
	exit := lockdebug.Enter(lockdebug.Table)
	t.mu.Lock()
	defer exit()
	defer t.mu.Unlock()

	i1, i2 := l1Index(vaddr), l2Index(vaddr)
	l2 := t.l1[i1]
	if l2 == nil {
		return nil
	}
	pte := l2.slots[i2]
	if pte == nil {
		return nil
	}
	l2.slots[i2] = nil
	l2.count--
	if l2.count == 0 {
		t.l1[i1] = nil
	}
	return pte
}

// Copy builds a new page table for a fork child. The source table's lock is
// held across the entire walk so that no concurrent fault in the source can
// split a shared PTE mid-copy. Shared entries are inc_ref'd and aliased
// into the new table (the COW edge); non-shared entries (stack) are
// deep-copied. On any allocation failure the partially built table is torn
// down, which correctly unwinds the reference counts it had already taken.
func (t *PageTable) Copy() (*PageTable, error) {
	exit := lockdebug.Enter(lockdebug.Table)
	t.mu.Lock()
	defer exit()
	defer t.mu.Unlock()

	dst := NewPageTable()
	for i1, l2 := range t.l1 {
		if l2 == nil {
			continue
		}
		for i2, pte := range l2.slots {
			if pte == nil {
				continue
			}
			vaddr := uintptr(i1)<<(l2Bits+offsetBits) | uintptr(i2)<<offsetBits

			if pte.Shared() {
				pte.incRef()
				dst.installUnlocked(vaddr, pte)
				continue
			}
			np, err := pte.copy()
			if err != nil {
				dst.destroyUnlocked()
				return nil, err
			}
			dst.installUnlocked(vaddr, np)
		}
	}
	return dst, nil
}

func (t *PageTable) installUnlocked(vaddr uintptr, pte *Pte_t) {
	i1, i2 := l1Index(vaddr), l2Index(vaddr)
	l2 := t.l1[i1]
	if l2 == nil {
		l2 = &l2Table{}
		t.l1[i1] = l2
	}
	if l2.slots[i2] == nil {
		l2.count++
	}
	l2.slots[i2] = pte
}

// Destroy calls decRef on every live entry and releases the backing
// tables.
func (t *PageTable) Destroy() {
	exit := lockdebug.Enter(lockdebug.Table)
	t.mu.Lock()
	defer exit()
	defer t.mu.Unlock()
	t.destroyUnlocked()
}

func (t *PageTable) destroyUnlocked() {
	for i1, l2 := range t.l1 {
		if l2 == nil {
			continue
		}
		for _, pte := range l2.slots {
			if pte != nil {
				pte.decRef()
			}
		}
		t.l1[i1] = nil
	}
}
